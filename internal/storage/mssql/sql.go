package mssql

// Each statement is guarded by OBJECT_ID / sys.indexes checks; SQL Server has
// no CREATE TABLE IF NOT EXISTS.
var schemaStatements = []string{
	`IF OBJECT_ID(N'dbo.minio_data_catalog', N'U') IS NULL
CREATE TABLE dbo.minio_data_catalog (
	catalog_id     INT IDENTITY(1,1) PRIMARY KEY,
	bucket_name    NVARCHAR(200) NOT NULL,
	object_name    NVARCHAR(600) NOT NULL,
	object_size    BIGINT NOT NULL DEFAULT 0,
	file_format    NVARCHAR(32) NULL,
	row_count      INT NULL,
	text_extracted BIT NOT NULL DEFAULT 0,
	content_hash   NVARCHAR(64) NULL,
	uploaded_by    NVARCHAR(200) NULL,
	metadata       NVARCHAR(MAX) NOT NULL DEFAULT N'{}',
	created_at     DATETIME2 NOT NULL DEFAULT SYSUTCDATETIME(),
	last_modified  DATETIME2 NOT NULL DEFAULT SYSUTCDATETIME(),
	CONSTRAINT uq_minio_data_catalog_key UNIQUE (bucket_name, object_name)
)`,
	`IF NOT EXISTS (SELECT 1 FROM sys.indexes WHERE name = N'idx_minio_data_catalog_content_hash')
CREATE INDEX idx_minio_data_catalog_content_hash ON dbo.minio_data_catalog (content_hash)`,
	`IF OBJECT_ID(N'dbo.unstructured_documents', N'U') IS NULL
CREATE TABLE dbo.unstructured_documents (
	id           INT IDENTITY(1,1) PRIMARY KEY,
	object_name  NVARCHAR(600) NOT NULL,
	file_type    NVARCHAR(32) NULL,
	text_content NVARCHAR(MAX) NULL,
	content_hash NVARCHAR(64) NOT NULL CONSTRAINT uq_unstructured_documents_hash UNIQUE,
	created_at   DATETIME2 NOT NULL DEFAULT SYSUTCDATETIME()
)`,
	`IF OBJECT_ID(N'dbo.unstructured_images', N'U') IS NULL
CREATE TABLE dbo.unstructured_images (
	id           INT IDENTITY(1,1) PRIMARY KEY,
	object_name  NVARCHAR(600) NOT NULL,
	img_format   NVARCHAR(32) NULL,
	width        INT NULL,
	height       INT NULL,
	ocr_text     NVARCHAR(MAX) NULL,
	content_hash NVARCHAR(64) NOT NULL CONSTRAINT uq_unstructured_images_hash UNIQUE,
	metadata     NVARCHAR(MAX) NOT NULL DEFAULT N'{}',
	created_at   DATETIME2 NOT NULL DEFAULT SYSUTCDATETIME()
)`,
}

const hashKnownSQL = `SELECT CASE WHEN EXISTS (SELECT 1 FROM dbo.minio_data_catalog WHERE content_hash = @p1) THEN 1 ELSE 0 END`

// HOLDLOCK makes the MERGE match-then-insert atomic under concurrency.
const upsertEntrySQL = `MERGE dbo.minio_data_catalog WITH (HOLDLOCK) AS t
USING (SELECT @p1 AS bucket_name, @p2 AS object_name) AS s
ON t.bucket_name = s.bucket_name AND t.object_name = s.object_name
WHEN MATCHED THEN UPDATE SET
	object_size    = @p3,
	file_format    = @p4,
	row_count      = @p5,
	text_extracted = @p6,
	content_hash   = @p7,
	uploaded_by    = @p8,
	metadata       = @p9,
	last_modified  = SYSUTCDATETIME()
WHEN NOT MATCHED THEN
	INSERT (bucket_name, object_name, object_size, file_format, row_count, text_extracted, content_hash, uploaded_by, metadata)
	VALUES (@p1, @p2, @p3, @p4, @p5, @p6, @p7, @p8, @p9);`

const getEntrySQL = `SELECT catalog_id, bucket_name, object_name, object_size, file_format, row_count,
	text_extracted, content_hash, uploaded_by, metadata, created_at, last_modified
FROM dbo.minio_data_catalog
WHERE bucket_name = @p1 AND object_name = @p2`

const upsertDocumentSQL = `MERGE dbo.unstructured_documents WITH (HOLDLOCK) AS t
USING (SELECT @p4 AS content_hash) AS s
ON t.content_hash = s.content_hash
WHEN MATCHED THEN UPDATE SET object_name = @p1, text_content = @p3
WHEN NOT MATCHED THEN
	INSERT (object_name, file_type, text_content, content_hash)
	VALUES (@p1, @p2, @p3, @p4);`

const upsertImageSQL = `MERGE dbo.unstructured_images WITH (HOLDLOCK) AS t
USING (SELECT @p6 AS content_hash) AS s
ON t.content_hash = s.content_hash
WHEN MATCHED THEN UPDATE SET
	object_name = @p1, img_format = @p2, width = @p3, height = @p4, ocr_text = @p5, metadata = @p7
WHEN NOT MATCHED THEN
	INSERT (object_name, img_format, width, height, ocr_text, content_hash, metadata)
	VALUES (@p1, @p2, @p3, @p4, @p5, @p6, @p7);`

const searchSQL = `SELECT TOP (@p2) id, object_name, ISNULL(file_type, N''), LEFT(ISNULL(text_content, N''), 200), created_at
FROM dbo.unstructured_documents
WHERE text_content LIKE @p1 ESCAPE '\'
ORDER BY created_at DESC, id DESC`

const storageStatsSQL = `SELECT file_format, COUNT_BIG(*), ISNULL(SUM(object_size), 0), ISNULL(AVG(CAST(object_size AS FLOAT)), 0)
FROM dbo.minio_data_catalog
WHERE file_format IS NOT NULL AND (@p1 = N'' OR uploaded_by = @p1)
GROUP BY file_format
ORDER BY 3 DESC, file_format`

const extractionStatsSQL = `SELECT COUNT_BIG(*), ISNULL(SUM(CAST(text_extracted AS BIGINT)), 0)
FROM dbo.minio_data_catalog
WHERE file_format IN (N'pdf', N'docx', N'doc', N'pptx', N'ppt') AND (@p1 = N'' OR uploaded_by = @p1)`

const dailyTrendSQL = `SELECT CAST(created_at AS DATE), ISNULL(file_format, N''), COUNT_BIG(*)
FROM dbo.minio_data_catalog
WHERE created_at >= DATEADD(day, -@p1, CAST(SYSUTCDATETIME() AS DATE)) AND (@p2 = N'' OR uploaded_by = @p2)
GROUP BY CAST(created_at AS DATE), file_format
ORDER BY 1 DESC, 2`

const countDocumentsSQL = `SELECT COUNT_BIG(*) FROM dbo.unstructured_documents`

const countImagesSQL = `SELECT COUNT_BIG(*) FROM dbo.unstructured_images`

const getAppLockSQL = `DECLARE @r INT;
EXEC @r = sp_getapplock @Resource = @p1, @LockMode = 'Exclusive', @LockOwner = 'Session', @LockTimeout = @p2;
SELECT @r;`

const releaseAppLockSQL = `EXEC sp_releaseapplock @Resource = @p1, @LockOwner = 'Session'`
