package artifacts

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"zemini/internal/auth"
)

// ErrNotFound is returned when an artifact is absent or owned by someone else.
var ErrNotFound = errors.New("image not found")

// Kind tags how an artifact was produced.
type Kind string

const (
	KindGenerate Kind = "generate"
	KindGhibli   Kind = "ghibli"
	KindImg2Img  Kind = "img2img"
)

// ParseKind validates a kind; the empty string defaults to KindGenerate.
func ParseKind(raw string) (Kind, bool) {
	switch Kind(raw) {
	case "":
		return KindGenerate, true
	case KindGenerate, KindGhibli, KindImg2Img:
		return Kind(raw), true
	default:
		return "", false
	}
}

// IsConversion reports whether the kind restyles a source image.
func (k Kind) IsConversion() bool {
	return k == KindGhibli || k == KindImg2Img
}

// Folder is the object storage folder for artifacts of this kind.
func (k Kind) Folder() string {
	switch k {
	case KindGhibli:
		return "zemini/ghibli"
	case KindImg2Img:
		return "zemini/img2img"
	default:
		return "zemini/generated"
	}
}

// Artifact is a stored image produced for one owner. Ownership never changes
// after creation.
type Artifact struct {
	ID        uuid.UUID     `json:"id"`
	Owner     auth.Identity `json:"-"`
	Prompt    string        `json:"prompt"`
	URL       string        `json:"imageUrl"`
	SourceURL string        `json:"originalUrl,omitempty"`
	Kind      Kind          `json:"type"`
	CreatedAt time.Time     `json:"createdAt"`
}
