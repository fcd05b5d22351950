package announcement

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/techsoc/clubhub/core"
)

// resolveRecipients turns a recipient scope plus an explicit list into a
// deduplicated set of addresses. Scope `all` queries the approved-member
// pool; `specific` uses the stored list. An empty result always fails: the
// caller must not dispatch to nobody.
func (svc *Service) resolveRecipients(ctx context.Context, scope Scope, selected []string) ([]string, error) {
	var recipients []string
	switch scope {
	case ScopeAll:
		emails, err := svc.members.ApprovedEmails(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "resolving approved members")
		}
		recipients = mergeExplicit(emails, "")
	case ScopeSpecific:
		recipients = mergeExplicit(selected, "")
	default:
		return nil, core.NewValidationError(errors.Errorf("invalid recipient scope %q", scope))
	}

	if len(recipients) == 0 {
		return nil, core.NewValidationError(ErrNoRecipients, core.FieldError{Field: "recipients", Error: ErrNoRecipients.Error()})
	}
	return recipients, nil
}

// mergeExplicit unions a pre-selected address list with a free-text block,
// dropping malformed tokens and exact-string duplicates. Order of first
// appearance is preserved.
func mergeExplicit(selected []string, freeText string) []string {
	seen := make(map[string]struct{}, len(selected))
	out := make([]string, 0, len(selected))

	add := func(email string) {
		if email == "" || !strings.Contains(email, "@") {
			return
		}
		if _, dup := seen[email]; dup {
			return
		}
		seen[email] = struct{}{}
		out = append(out, email)
	}

	// addresses are only trimmed, never case-folded: dedup is on the exact
	// string, so A@x.org and a@x.org are distinct recipients
	for _, email := range selected {
		add(core.CleanString(email))
	}
	for _, email := range core.ParseEmailList(freeText) {
		add(email)
	}
	return out
}
