package attachment

import (
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/credportal/credportal/engine/core"
	"github.com/gabriel-vasile/mimetype"
)

const DefaultURLPrefix = "/uploads"

// Entity kinds used as the first path segment below the upload root.
const (
	KindContact = "contact"
	KindTicket  = "ticket"
)

var safeExt = regexp.MustCompile(`^\.[a-z0-9]{1,10}$`)

// Layout maps uploads to store keys and keys to the URLs embedded in
// rich text. Keys look like uploads/<kind>/<year>/<month>/<entity-id>/<id>.<ext>
// with an unpadded month.
type Layout struct {
	root string
}

// NewLayout derives the key root from a URL prefix such as "/uploads".
func NewLayout(urlPrefix string) Layout {
	root := strings.Trim(urlPrefix, "/")
	if root == "" {
		root = strings.Trim(DefaultURLPrefix, "/")
	}
	return Layout{root: root}
}

func (l Layout) Root() string { return l.root }

// Key builds a fresh, collision-resistant key for an upload.
func (l Layout) Key(kind string, at time.Time, entityID string, filename string, content []byte) (string, error) {
	if kind == "" || entityID == "" || strings.ContainsAny(kind+entityID, `/\.`) {
		return "", fmt.Errorf("%w: invalid upload owner %q/%q", core.ErrValidation, kind, entityID)
	}
	id, err := core.NewID()
	if err != nil {
		return "", err
	}
	return path.Join(
		l.root,
		kind,
		strconv.Itoa(at.Year()),
		strconv.Itoa(int(at.Month())),
		entityID,
		id.String()+Extension(filename, content),
	), nil
}

// URL is the root-relative reference stored in documents.
func (l Layout) URL(key string) string {
	return "/" + key
}

// KeyFromURL returns the store key of a local upload reference. External
// URLs, other local paths and traversal attempts are rejected.
func (l Layout) KeyFromURL(url string) (string, bool) {
	if !strings.HasPrefix(url, "/"+l.root+"/") {
		return "", false
	}
	key, err := sanitizeKey(strings.TrimPrefix(url, "/"))
	if err != nil || !strings.HasPrefix(key, l.root+"/") {
		return "", false
	}
	return key, true
}

// Extension picks the file extension from the client filename, falling back
// to content sniffing.
func Extension(filename string, content []byte) string {
	ext := strings.ToLower(path.Ext(strings.TrimSpace(filename)))
	if safeExt.MatchString(ext) {
		return ext
	}
	if len(content) > 0 {
		if sniffed := mimetype.Detect(content).Extension(); safeExt.MatchString(sniffed) {
			return sniffed
		}
	}
	return ".bin"
}

// DetectMIME reports the sniffed content type.
func DetectMIME(content []byte) string {
	return mimetype.Detect(content).String()
}
