// Package schemas embeds the JSON Schemas that describe external and exported documents.
package schemas

import "embed"

// Schema file names.
const (
	DzobsJob = "dzobs_job.schema.json"
	Posting  = "posting.schema.json"
)

//go:embed *.schema.json
var FS embed.FS
