// Package documents finds and removes the files uploaded for a case. Files live under
// cases/<case_type>/<case_id>/<document>[.ext], in an S3 bucket or a local directory.
package documents

import (
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"

	"dhportal/main_backend/cases"
)

// Prefix is the key prefix every document of a case shares.
func Prefix(caseType cases.CaseType, caseID string) (string, error) {
	if caseType == "" || strings.ContainsAny(string(caseType), "/\\.") {
		return "", fmt.Errorf("documents: invalid case type %q", caseType)
	}
	if err := uuid.Validate(caseID); err != nil {
		return "", fmt.Errorf("documents: invalid case id %q: %w", caseID, err)
	}
	return "cases/" + string(caseType) + "/" + caseID + "/", nil
}

// DocumentKey maps an object key under a case prefix to the document slot it fills:
// "cases/direct_hire/<id>/passport.pdf" fills "passport". Nested keys fill nothing.
func DocumentKey(prefix, objectKey string) (string, bool) {
	rest, ok := strings.CutPrefix(objectKey, prefix)
	if !ok || rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	name := strings.TrimSuffix(rest, path.Ext(rest))
	if name == "" {
		return "", false
	}
	return name, true
}
