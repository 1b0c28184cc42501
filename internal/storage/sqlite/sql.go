package sqlite

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS minio_data_catalog (
	catalog_id     INTEGER PRIMARY KEY AUTOINCREMENT,
	bucket_name    TEXT NOT NULL,
	object_name    TEXT NOT NULL,
	object_size    INTEGER NOT NULL DEFAULT 0,
	file_format    TEXT,
	row_count      INTEGER,
	text_extracted INTEGER NOT NULL DEFAULT 0,
	content_hash   TEXT,
	uploaded_by    TEXT,
	metadata       TEXT NOT NULL DEFAULT '{}',
	created_at     TEXT NOT NULL,
	last_modified  TEXT NOT NULL,
	UNIQUE (bucket_name, object_name)
)`,
	`CREATE INDEX IF NOT EXISTS idx_minio_data_catalog_content_hash ON minio_data_catalog (content_hash)`,
	`CREATE TABLE IF NOT EXISTS unstructured_documents (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	object_name  TEXT NOT NULL,
	file_type    TEXT,
	text_content TEXT,
	content_hash TEXT NOT NULL UNIQUE,
	created_at   TEXT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS unstructured_images (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	object_name  TEXT NOT NULL,
	img_format   TEXT,
	width        INTEGER,
	height       INTEGER,
	ocr_text     TEXT,
	content_hash TEXT NOT NULL UNIQUE,
	metadata     TEXT NOT NULL DEFAULT '{}',
	created_at   TEXT NOT NULL
)`,
}

const hashKnownSQL = `SELECT EXISTS (SELECT 1 FROM minio_data_catalog WHERE content_hash = ?)`

const upsertEntrySQL = `INSERT INTO minio_data_catalog
	(bucket_name, object_name, object_size, file_format, row_count, text_extracted, content_hash, uploaded_by, metadata, created_at, last_modified)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (bucket_name, object_name) DO UPDATE SET
	object_size    = excluded.object_size,
	file_format    = excluded.file_format,
	row_count      = excluded.row_count,
	text_extracted = excluded.text_extracted,
	content_hash   = excluded.content_hash,
	uploaded_by    = excluded.uploaded_by,
	metadata       = excluded.metadata,
	last_modified  = excluded.last_modified`

const getEntrySQL = `SELECT catalog_id, bucket_name, object_name, object_size, file_format, row_count,
	text_extracted, content_hash, uploaded_by, metadata, created_at, last_modified
FROM minio_data_catalog
WHERE bucket_name = ? AND object_name = ?`

const upsertDocumentSQL = `INSERT INTO unstructured_documents (object_name, file_type, text_content, content_hash, created_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (content_hash) DO UPDATE SET
	object_name  = excluded.object_name,
	text_content = excluded.text_content`

const upsertImageSQL = `INSERT INTO unstructured_images (object_name, img_format, width, height, ocr_text, content_hash, metadata, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (content_hash) DO UPDATE SET
	object_name = excluded.object_name,
	img_format  = excluded.img_format,
	width       = excluded.width,
	height      = excluded.height,
	ocr_text    = excluded.ocr_text,
	metadata    = excluded.metadata`

const searchSQL = `SELECT id, object_name, COALESCE(file_type, ''), substr(COALESCE(text_content, ''), 1, 200), created_at
FROM unstructured_documents
WHERE text_content LIKE ? ESCAPE '\'
ORDER BY created_at DESC, id DESC
LIMIT ?`

const storageStatsSQL = `SELECT file_format, COUNT(*), COALESCE(SUM(object_size), 0), COALESCE(AVG(object_size), 0.0)
FROM minio_data_catalog
WHERE file_format IS NOT NULL AND (? = '' OR uploaded_by = ?)
GROUP BY file_format
ORDER BY 3 DESC, file_format`

const extractionStatsSQL = `SELECT COUNT(*), COALESCE(SUM(text_extracted), 0)
FROM minio_data_catalog
WHERE file_format IN ('pdf', 'docx', 'doc', 'pptx', 'ppt') AND (? = '' OR uploaded_by = ?)`

const dailyTrendSQL = `SELECT substr(created_at, 1, 10), COALESCE(file_format, ''), COUNT(*)
FROM minio_data_catalog
WHERE created_at >= ? AND (? = '' OR uploaded_by = ?)
GROUP BY substr(created_at, 1, 10), file_format
ORDER BY 1 DESC, 2`

const countDocumentsSQL = `SELECT COUNT(*) FROM unstructured_documents`

const countImagesSQL = `SELECT COUNT(*) FROM unstructured_images`
