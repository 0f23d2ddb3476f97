package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/alexanderramin/clicktrail/internal/repository"
	"github.com/alexanderramin/clicktrail/internal/service"
	"github.com/alexanderramin/clicktrail/internal/store"
)

// resolveSessionID accepts a full session id, a unique prefix of one, or
// "latest" for the most recently started session.
func resolveSessionID(ctx context.Context, st *store.Store, ref string) (string, error) {
	sessions, err := st.EnumerateSessions(ctx)
	if err != nil {
		return "", err
	}
	if ref == "latest" {
		if len(sessions) == 0 {
			return "", fmt.Errorf("%w: no sessions recorded", store.ErrSessionNotFound)
		}
		return sessions[len(sessions)-1].ID, nil
	}

	var matches []string
	for _, s := range sessions {
		if s.ID == ref {
			return ref, nil
		}
		if strings.HasPrefix(s.ID, ref) {
			matches = append(matches, s.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s", store.ErrSessionNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("session %q is ambiguous: matches %s", ref, strings.Join(matches, ", "))
	}
}

// resolveReportID accepts a full report id or a unique prefix of one.
func resolveReportID(ctx context.Context, reports service.ReportService, ref string) (string, error) {
	all, err := reports.List(ctx, "")
	if err != nil {
		return "", err
	}
	var matches []string
	for _, r := range all {
		if r.ID == ref {
			return ref, nil
		}
		if strings.HasPrefix(r.ID, ref) {
			matches = append(matches, r.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("report %s: %w", ref, repository.ErrNotFound)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("report %q is ambiguous: %d matches", ref, len(matches))
	}
}
