package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/okian/coachplan/internal/domain/rules"
)

// ValidateRules loads the rule table at path and describes it on out. Every
// problem in the file is reported in the returned error.
func ValidateRules(ctx context.Context, path string, out io.Writer) (*rules.Table, error) {
	t, err := rules.LoadFile(ctx, path)
	if err != nil {
		return nil, err
	}
	if _, err := fmt.Fprintf(out, "%s: version %s, fingerprint %016x\n", path, t.Version(), t.Fingerprint()); err != nil {
		return t, err
	}
	for _, name := range t.CategoryNames() {
		c, _ := t.Category(name)
		if _, err := fmt.Fprintf(out, "   %s: capacity %d, skill %d, roles %v\n", name, c.Capacity, c.RequiredSkill, c.Roles); err != nil {
			return t, err
		}
	}
	return t, nil
}
