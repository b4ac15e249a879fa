package upload

import (
	"fmt"
	"mime"

	"github.com/aofei/mimesniffer"
)

// ErrMIMETypeNotAllowed is returned by CheckSignature when the declared (or
// sniffed) MIME type is not present in the field's whitelist.
type ErrMIMETypeNotAllowed struct {
	Declared string
	Sniffed  string
}

func (e *ErrMIMETypeNotAllowed) Error() string {
	return fmt.Sprintf(
		"upload: MIME type %q (sniffed: %q) is not in the allowed list",
		e.Declared, e.Sniffed,
	)
}

// ErrSignatureMismatch is returned by CheckSignature when the file's
// leading bytes don't match its declared Content-Type — spec.md §4.4's
// "file-signature check (compare leading bytes against declared MIME)".
type ErrSignatureMismatch struct {
	Declared string
	Sniffed  string
}

func (e *ErrSignatureMismatch) Error() string {
	return fmt.Sprintf(
		"upload: declared MIME type %q does not match sniffed signature %q",
		e.Declared, e.Sniffed,
	)
}

// Sniff returns the MIME type sniffed from a file's leading bytes, the same
// way air's Response.Write sniffs a Content-Type for unlabeled content.
func Sniff(head []byte) string {
	return mimesniffer.Sniff(head)
}

// CheckSignature validates a file part's leading bytes against its declared
// Content-Type and an optional whitelist of allowed MIME types. An empty
// whitelist means any MIME type is allowed (whitelist enforcement is
// opt-in per field, per spec.md's configuration surface).
//
// Only the type/subtype pair is compared (parameters like charset are
// stripped via mime.ParseMediaType). A declared type that fails to parse,
// and the generic "application/octet-stream" (which Parse also assumes for
// a part with no Content-Type), are replaced by the sniffed type, so such a
// part is never rejected as a signature mismatch; the whitelist still
// applies to it.
func CheckSignature(declaredContentType string, head []byte, whitelist []string) error {
	sniffed := Sniff(head)

	declared, _, err := mime.ParseMediaType(declaredContentType)
	if err != nil || declared == "" || declared == "application/octet-stream" {
		declared = sniffed
	}

	if len(whitelist) > 0 {
		allowed := false
		for _, w := range whitelist {
			if w == declared || w == sniffed {
				allowed = true
				break
			}
		}
		if !allowed {
			return &ErrMIMETypeNotAllowed{Declared: declared, Sniffed: sniffed}
		}
	}

	if declared != sniffed && !mimeFamilyMatches(declared, sniffed) {
		return &ErrSignatureMismatch{Declared: declared, Sniffed: sniffed}
	}

	return nil
}

// mimeFamilyMatches allows declared/sniffed mismatches within the same
// top-level family (e.g. "text/plain" declared for a sniffed
// "text/html; charset=utf-8") since mimesniffer's signature table is finer
// grained than most declared Content-Type headers need to be.
func mimeFamilyMatches(a, b string) bool {
	fa := family(a)
	fb := family(b)
	return fa != "" && fa == fb
}

func family(mt string) string {
	for i := 0; i < len(mt); i++ {
		if mt[i] == '/' {
			return mt[:i]
		}
	}
	return mt
}
