package result

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"testing"
)

func TestParseFilePathRecord(t *testing.T) {
	t.Parallel()
	p, err := Parse(json.RawMessage(`{"filePath":"/shared/out/result.mp4"}`))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if len(p.Refs) != 1 {
		t.Fatalf("refs = %d, want 1", len(p.Refs))
	}
	ref := p.Refs[0]
	if ref.Path != "/shared/out/result.mp4" {
		t.Errorf("path = %q", ref.Path)
	}
	if ref.FileName != "result.mp4" {
		t.Errorf("fileName = %q, want basename of path", ref.FileName)
	}
}

func TestParseBinaryRecord(t *testing.T) {
	t.Parallel()
	data := base64.StdEncoding.EncodeToString([]byte("PNGDATA"))
	raw := fmt.Sprintf(`{"format":"binary","data":%q,"filename":"img.png","mime_type":"image/png"}`, data)

	p, err := Parse(json.RawMessage(raw))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if len(p.Refs) != 1 {
		t.Fatalf("refs = %d, want 1", len(p.Refs))
	}
	ref := p.Refs[0]
	if string(ref.Payload) != "PNGDATA" {
		t.Errorf("payload = %q", ref.Payload)
	}
	if ref.FileName != "img.png" || ref.MimeType != "image/png" {
		t.Errorf("name/mime = %q/%q", ref.FileName, ref.MimeType)
	}
}

func TestParseFilePathFormatRecord(t *testing.T) {
	t.Parallel()
	p, err := Parse(json.RawMessage(`{"format":"filePath","data":"/shared/out/frame.png","fileName":"frame.png"}`))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if len(p.Refs) != 1 || p.Refs[0].Path != "/shared/out/frame.png" {
		t.Errorf("refs = %+v", p.Refs)
	}
}

func TestParseMultipleKeepsOrder(t *testing.T) {
	t.Parallel()
	raw := `{"format":"multiple","results":[
		{"format":"filePath","data":"/shared/a.png","fileName":"a.png"},
		{"format":"binary","data":"` + base64.StdEncoding.EncodeToString([]byte("B")) + `","fileName":"b.bin"},
		{"filePath":"/shared/c.mp4"}
	]}`

	p, err := Parse(json.RawMessage(raw))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if len(p.Refs) != 3 {
		t.Fatalf("refs = %d, want 3", len(p.Refs))
	}
	if p.Refs[0].Path != "/shared/a.png" {
		t.Errorf("refs[0] = %+v", p.Refs[0])
	}
	if string(p.Refs[1].Payload) != "B" {
		t.Errorf("refs[1] = %+v", p.Refs[1])
	}
	if p.Refs[2].Path != "/shared/c.mp4" {
		t.Errorf("refs[2] = %+v", p.Refs[2])
	}
}

func TestParseMultipleRejectsEmptyElement(t *testing.T) {
	t.Parallel()
	if _, err := Parse(json.RawMessage(`{"format":"multiple","results":[{"note":"nothing here"}]}`)); err == nil {
		t.Error("Parse() should reject a multi-result element without artifact data")
	}
}

func TestParseArtifactlessPayload(t *testing.T) {
	t.Parallel()
	raw := json.RawMessage(`{"text":"transcribed words","language":"en"}`)
	p, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if len(p.Refs) != 0 {
		t.Errorf("refs = %d, want 0 for artifact-less payload", len(p.Refs))
	}
	if string(p.Raw) != string(raw) {
		t.Errorf("raw payload was not preserved")
	}
}

func TestParseInvalidBase64(t *testing.T) {
	t.Parallel()
	if _, err := Parse(json.RawMessage(`{"format":"binary","data":"!!not-base64!!"}`)); err == nil {
		t.Error("Parse() should reject invalid base64 artifact data")
	}
}

func TestMimeForName(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		want string
	}{
		{"out.png", "image/png"},
		{"photo.JPG", "image/jpeg"},
		{"photo.jpeg", "image/jpeg"},
		{"anim.gif", "image/gif"},
		{"pic.webp", "image/webp"},
		{"clip.mp4", "video/mp4"},
		{"clip.webm", "video/webm"},
		{"song.mp3", "audio/mpeg"},
		{"voice.wav", "audio/wav"},
		{"model.safetensors", "application/octet-stream"},
		{"noextension", "application/octet-stream"},
	}
	for _, tt := range tests {
		if got := MimeForName(tt.name); got != tt.want {
			t.Errorf("MimeForName(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}
