package ingest

import (
	"strings"

	"github.com/google/uuid"
)

var surrogateNamespace = uuid.MustParse("6f1c3b0e-9a57-4c1e-8d2a-5e4d1c0b7a29")

// SurrogateIdentifier derives a stable 10-character identifier from the
// document bytes for notices that carry no CIG.
func SurrogateIdentifier(data []byte) string {
	id := uuid.NewSHA1(surrogateNamespace, data)
	return strings.ToUpper(strings.ReplaceAll(id.String(), "-", ""))[:10]
}
