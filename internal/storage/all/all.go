// Package all registers every catalog backend and the SQL Server driver.
// Binaries blank-import it once.
package all

import (
	_ "github.com/microsoft/go-mssqldb"

	_ "lakehouse/internal/storage/mssql"
	_ "lakehouse/internal/storage/postgres"
	_ "lakehouse/internal/storage/sqlite"
)
