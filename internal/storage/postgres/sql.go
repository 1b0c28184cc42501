package postgres

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS minio_data_catalog (
	catalog_id     SERIAL PRIMARY KEY,
	bucket_name    TEXT NOT NULL,
	object_name    TEXT NOT NULL,
	object_size    BIGINT NOT NULL DEFAULT 0,
	file_format    TEXT,
	row_count      INTEGER,
	text_extracted BOOLEAN NOT NULL DEFAULT FALSE,
	content_hash   TEXT,
	uploaded_by    TEXT,
	metadata       JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	last_modified  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (bucket_name, object_name)
)`,
	`CREATE INDEX IF NOT EXISTS idx_minio_data_catalog_content_hash ON minio_data_catalog (content_hash)`,
	`CREATE TABLE IF NOT EXISTS unstructured_documents (
	id           SERIAL PRIMARY KEY,
	object_name  TEXT NOT NULL,
	file_type    TEXT,
	text_content TEXT,
	content_hash TEXT NOT NULL UNIQUE,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
	`CREATE TABLE IF NOT EXISTS unstructured_images (
	id           SERIAL PRIMARY KEY,
	object_name  TEXT NOT NULL,
	img_format   TEXT,
	width        INTEGER,
	height       INTEGER,
	ocr_text     TEXT,
	content_hash TEXT NOT NULL UNIQUE,
	metadata     JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
}

const hashKnownSQL = `SELECT EXISTS (SELECT 1 FROM minio_data_catalog WHERE content_hash = $1)`

// created_at and catalog_id are deliberately absent from the update list.
const upsertEntrySQL = `INSERT INTO minio_data_catalog
	(bucket_name, object_name, object_size, file_format, row_count, text_extracted, content_hash, uploaded_by, metadata, last_modified)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb, NOW())
ON CONFLICT (bucket_name, object_name) DO UPDATE SET
	object_size    = EXCLUDED.object_size,
	file_format    = EXCLUDED.file_format,
	row_count      = EXCLUDED.row_count,
	text_extracted = EXCLUDED.text_extracted,
	content_hash   = EXCLUDED.content_hash,
	uploaded_by    = EXCLUDED.uploaded_by,
	metadata       = EXCLUDED.metadata,
	last_modified  = NOW()`

const getEntrySQL = `SELECT catalog_id, bucket_name, object_name, object_size, file_format, row_count,
	text_extracted, content_hash, uploaded_by, metadata, created_at, last_modified
FROM minio_data_catalog
WHERE bucket_name = $1 AND object_name = $2`

const upsertDocumentSQL = `INSERT INTO unstructured_documents (object_name, file_type, text_content, content_hash)
VALUES ($1, $2, $3, $4)
ON CONFLICT (content_hash) DO UPDATE SET
	object_name  = EXCLUDED.object_name,
	text_content = EXCLUDED.text_content`

const upsertImageSQL = `INSERT INTO unstructured_images (object_name, img_format, width, height, ocr_text, content_hash, metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb)
ON CONFLICT (content_hash) DO UPDATE SET
	object_name = EXCLUDED.object_name,
	img_format  = EXCLUDED.img_format,
	width       = EXCLUDED.width,
	height      = EXCLUDED.height,
	ocr_text    = EXCLUDED.ocr_text,
	metadata    = EXCLUDED.metadata`

const searchSQL = `SELECT id, object_name, COALESCE(file_type, ''), LEFT(COALESCE(text_content, ''), 200), created_at
FROM unstructured_documents
WHERE text_content ILIKE $1
ORDER BY created_at DESC
LIMIT $2`

const storageStatsSQL = `SELECT file_format, COUNT(*), COALESCE(SUM(object_size), 0), COALESCE(AVG(object_size), 0)::float8
FROM minio_data_catalog
WHERE file_format IS NOT NULL AND ($1 = '' OR uploaded_by = $1)
GROUP BY file_format
ORDER BY 3 DESC, file_format`

const extractionStatsSQL = `SELECT COUNT(*), COALESCE(SUM(CASE WHEN text_extracted THEN 1 ELSE 0 END), 0)
FROM minio_data_catalog
WHERE file_format = ANY($1) AND ($2 = '' OR uploaded_by = $2)`

const dailyTrendSQL = `SELECT DATE(created_at), COALESCE(file_format, ''), COUNT(*)
FROM minio_data_catalog
WHERE created_at >= CURRENT_DATE - make_interval(days => $1) AND ($2 = '' OR uploaded_by = $2)
GROUP BY DATE(created_at), file_format
ORDER BY 1 DESC, 2`

const countDocumentsSQL = `SELECT COUNT(*) FROM unstructured_documents`

const countImagesSQL = `SELECT COUNT(*) FROM unstructured_images`
