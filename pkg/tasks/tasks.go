// Package tasks defines the message payloads exchanged over Kafka.
package tasks

// IngestTask asks the consumer to ingest one document. SourceFolder tasks
// name a file inside the configured raw-files directory; SourceBucket
// tasks name an object in the configured MinIO bucket.
type IngestTask struct {
	FileName string `json:"file_name"`
	Source   string `json:"source"`
}

// Values for IngestTask.Source.
const (
	SourceFolder = "folder"
	SourceBucket = "bucket"
)
