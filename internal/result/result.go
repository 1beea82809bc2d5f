// Package result turns terminal gatekeeper payloads into finalized outputs:
// files moved to their destination or in-memory binary records.
package result

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"path/filepath"
)

// Reference is one artifact handed over by a gatekeeper. Exactly one of
// Path and Payload is set: artifacts on shared local disk arrive as a path,
// inline artifacts arrive base64-encoded.
type Reference struct {
	Path     string // absolute path on shared disk
	Payload  []byte // decoded inline bytes
	FileName string
	MimeType string
}

// Parsed is a decoded terminal payload.
type Parsed struct {
	Refs []Reference     // artifact references, in delivery order; may be empty
	Raw  json.RawMessage // the payload as received, for artifact-less results
}

// rawResult mirrors the wire shapes a terminal payload can take: a single
// artifact record, a multi-result envelope, or a bare filePath record.
type rawResult struct {
	Format   string            `json:"format"`
	Results  []json.RawMessage `json:"results"`
	Data     string            `json:"data"`
	FileName string            `json:"fileName"`
	Filename string            `json:"filename"` // older gatekeepers use lowercase
	MimeType string            `json:"mimeType"`
	MimeAlt  string            `json:"mime_type"`
	FilePath string            `json:"filePath"`
}

// Parse decodes a terminal payload into artifact references.
// A payload carrying no artifact (e.g. a transcription text result) yields
// zero references; the caller passes Raw through unchanged.
func Parse(raw json.RawMessage) (*Parsed, error) {
	var r rawResult
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("undecodable result payload: %w", err)
	}

	p := &Parsed{Raw: raw}

	if r.Format == "multiple" {
		for i, element := range r.Results {
			var er rawResult
			if err := json.Unmarshal(element, &er); err != nil {
				return nil, fmt.Errorf("result[%d]: %w", i, err)
			}
			ref, ok, err := toReference(er)
			if err != nil {
				return nil, fmt.Errorf("result[%d]: %w", i, err)
			}
			if !ok {
				return nil, fmt.Errorf("result[%d]: no artifact data", i)
			}
			p.Refs = append(p.Refs, ref)
		}
		return p, nil
	}

	ref, ok, err := toReference(r)
	if err != nil {
		return nil, err
	}
	if ok {
		p.Refs = append(p.Refs, ref)
	}
	return p, nil
}

// toReference converts one wire record to a Reference. The second return is
// false when the record carries no artifact.
func toReference(r rawResult) (Reference, bool, error) {
	name := r.FileName
	if name == "" {
		name = r.Filename
	}
	mime := r.MimeType
	if mime == "" {
		mime = r.MimeAlt
	}

	switch {
	case r.Format == "binary" && r.Data != "":
		payload, err := base64.StdEncoding.DecodeString(r.Data)
		if err != nil {
			return Reference{}, false, fmt.Errorf("invalid base64 artifact data: %w", err)
		}
		return Reference{Payload: payload, FileName: name, MimeType: mime}, true, nil

	case r.Data != "":
		if name == "" {
			name = filepath.Base(r.Data)
		}
		return Reference{Path: r.Data, FileName: name, MimeType: mime}, true, nil

	case r.FilePath != "":
		if name == "" {
			name = filepath.Base(r.FilePath)
		}
		return Reference{Path: r.FilePath, FileName: name, MimeType: mime}, true, nil
	}

	return Reference{}, false, nil
}
