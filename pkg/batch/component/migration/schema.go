package migration

import (
	"embed"
	"fmt"
	"io/fs"
)

//go:embed resource
var rawSchemaFS embed.FS

// SchemaFS returns the embedded migrations. Each supported database type has its own directory.
func SchemaFS() fs.FS {
	sub, err := fs.Sub(rawSchemaFS, "resource")
	if err != nil {
		panic(fmt.Sprintf("embedded migrations are missing: %v", err))
	}
	return sub
}

// SchemaPath returns the directory of SchemaFS holding the migrations for dbType.
func SchemaPath(dbType string) (string, error) {
	switch dbType {
	case "sqlite", "postgres", "mysql":
		return dbType, nil
	case "redshift":
		return "postgres", nil
	default:
		return "", fmt.Errorf("no schema migrations for database type: %s", dbType)
	}
}
