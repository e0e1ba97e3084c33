package runoppositematch

import "opposite-match-workers/internal/common/validation"

// inputSchema guards the job payload before the engine sees it. Answer values
// are range-checked by the engine against the configured scale, so the schema
// only pins down shape and types.
var inputSchema = validation.MustCompileSchema(`{
	"type": "object",
	"required": ["surveyId", "respondents"],
	"properties": {
		"surveyId": {
			"type": "string",
			"minLength": 1
		},
		"strategy": {
			"type": "string",
			"enum": ["absolute-difference", "euclidean", "weighted", "polarization"]
		},
		"respondents": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["id", "answers"],
				"properties": {
					"id": {
						"type": "string",
						"minLength": 1
					},
					"answers": {
						"type": "array",
						"items": {"type": "integer"}
					}
				}
			}
		}
	}
}`)
