// Package schemas embeds the JSON Schemas shipped with repackr.
package schemas

import "embed"

//go:embed *.schema.json
var files embed.FS

// ConfigSchemaFile is the schema for the JSON config file.
const ConfigSchemaFile = "config.schema.json"

// Load returns the raw schema document by file name.
func Load(name string) ([]byte, error) {
	return files.ReadFile(name)
}

// ConfigSchema returns the config file schema.
func ConfigSchema() []byte {
	data, err := files.ReadFile(ConfigSchemaFile)
	if err != nil {
		panic("schemas: embedded config schema missing: " + err.Error())
	}
	return data
}
