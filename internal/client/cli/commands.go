package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dmitrijs2005/reviewdesk/internal/client/models"
	"github.com/dmitrijs2005/reviewdesk/internal/client/session"
)

// WhoAmI prints the signed-in user as the rest of the application sees it.
func (a *App) WhoAmI(ctx context.Context) error {
	u := a.state.Current()
	if u == nil {
		return session.ErrNotAuthenticated
	}

	fmt.Fprintf(a.out, "%s (@%s)\n", u.DisplayName(), u.Username)
	if u.Email != "" {
		fmt.Fprintf(a.out, "  email:     %s\n", u.Email)
	}
	if !u.CreatedAt.IsZero() {
		fmt.Fprintf(a.out, "  joined:    %s\n", u.CreatedAt.Format(time.DateOnly))
	}
	fmt.Fprintf(a.out, "  reviews:   %d\n", u.Stats.ReviewCount)
	fmt.Fprintf(a.out, "  followers: %d, following: %d\n", u.Stats.FollowerCount, u.Stats.FollowingCount)
	return nil
}

// Status prints the session flags and the state of its timers.
func (a *App) Status(ctx context.Context) error {
	s := a.session.Session()

	if !s.IsAuthenticated {
		fmt.Fprintln(a.out, "Not signed in.")
		if s.Error != "" {
			fmt.Fprintf(a.out, "Last error: %s\n", s.Error)
		}
		return nil
	}

	fmt.Fprintf(a.out, "Signed in as %s\n", s.User.DisplayName())
	if s.Error != "" {
		fmt.Fprintf(a.out, "Last error: %s\n", s.Error)
	}

	if sch := a.session.Scheduler(); sch != nil {
		fmt.Fprintf(a.out, "Refresh: %s\n", sch.State())
		if next, ok := sch.Pending(); ok {
			fmt.Fprintf(a.out, "Next refresh: %s\n", next.FireAt.Local().Format(time.DateTime))
		}
		if sch.SafetyActive() {
			fmt.Fprintln(a.out, "Safety refresh: on")
		}
	}
	if act := a.session.Activity(); act != nil {
		if last := act.LastActivity(); !last.IsZero() {
			fmt.Fprintf(a.out, "Last activity: %s\n", last.Local().Format(time.DateTime))
		}
	}
	return nil
}

// Refresh renews the access token now.
func (a *App) Refresh(ctx context.Context) error {
	if err := a.session.Refresh(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Token refreshed.")
	return nil
}

// Rename changes the display name locally. With no arguments it prompts
// for the new name.
func (a *App) Rename(ctx context.Context, args []string) error {
	if !a.isLoggedIn() {
		return session.ErrNotAuthenticated
	}

	name := strings.TrimSpace(strings.Join(args, " "))
	if name == "" {
		var err error
		if name, err = getSimpleText(a.reader, "Enter full name", a.out); err != nil {
			return err
		}
	}
	if name == "" {
		return fmt.Errorf("name must not be empty")
	}

	return a.session.UpdateProfile(ctx, models.ProfilePatch{FullName: &name})
}

// Stats prints the session counters collected since start-up.
func (a *App) Stats(ctx context.Context) error {
	families, err := a.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}

	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, l := range m.GetLabel() {
				labels = append(labels, l.GetName()+"="+l.GetValue())
			}
			sort.Strings(labels)

			name := mf.GetName()
			if len(labels) > 0 {
				name += "{" + strings.Join(labels, ",") + "}"
			}

			switch {
			case m.GetCounter() != nil:
				fmt.Fprintf(a.out, "%s %g\n", name, m.GetCounter().GetValue())
			case m.GetGauge() != nil:
				fmt.Fprintf(a.out, "%s %g\n", name, m.GetGauge().GetValue())
			case m.GetHistogram() != nil:
				h := m.GetHistogram()
				fmt.Fprintf(a.out, "%s count=%d sum=%g\n", name, h.GetSampleCount(), h.GetSampleSum())
			}
		}
	}
	return nil
}
