package mcpserver

// SchemaURI names the record-format resource.
const SchemaURI = "jobpilot://interview-schema"

// InterviewSchema describes the records the tools read and write.
const InterviewSchema = `# Interview records

## Interview

| field       | type     | notes                                        |
|-------------|----------|----------------------------------------------|
| id          | string   | assigned by the store, never reused          |
| title       | string   |                                              |
| company     | string   | indexed                                      |
| position    | string   |                                              |
| tags        | string[] |                                              |
| description | string   |                                              |
| date        | RFC 3339 | set when the interview is created; indexed   |
| duration    | string   | free-form, e.g. "45m"                        |
| status      | string   | one of pending, completed, reviewed          |

## Transcript

An interview has at most one transcript in practice. When several exist the
earliest one is returned. update_transcript rewrites it in place, or creates
it when the interview has none.

## Video

Recordings are WebM blobs. Tools report their size only; download them over
HTTP at /api/interviews/{id}/video.

Deleting an interview deletes its videos and transcripts with it.
`
