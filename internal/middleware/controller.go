package middleware

import (
	"context"
	"net/http"
	"slices"

	"github.com/alexedwards/scs/v2"
	"github.com/google/uuid"
)

type ContextKey string

const ControllerKey ContextKey = "controller"

const (
	controllerSessionKey = "controller_code"
	pairedSessionKey     = "paired_displays"
)

// LoadController gives every browser a stable controller code kept in its
// scs session, so a reloaded control page stays paired with its displays.
func LoadController(sm *scs.SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			code := sm.GetString(r.Context(), controllerSessionKey)
			if _, err := uuid.Parse(code); err != nil {
				code = uuid.NewString()
				sm.Put(r.Context(), controllerSessionKey, code)
			}

			ctx := context.WithValue(r.Context(), ControllerKey, code)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func ControllerFromContext(ctx context.Context) (string, bool) {
	code, ok := ctx.Value(ControllerKey).(string)
	return code, ok && code != ""
}

// RememberPaired records display codes this controller paired with. A nil or
// empty list forgets all of them.
func RememberPaired(ctx context.Context, sm *scs.SessionManager, codes []string) {
	if len(codes) == 0 {
		sm.Remove(ctx, pairedSessionKey)
		return
	}
	known := PairedDisplays(ctx, sm)
	for _, c := range codes {
		if !slices.Contains(known, c) {
			known = append(known, c)
		}
	}
	sm.Put(ctx, pairedSessionKey, known)
}

func ForgetPaired(ctx context.Context, sm *scs.SessionManager, code string) {
	known := slices.DeleteFunc(PairedDisplays(ctx, sm), func(c string) bool { return c == code })
	RememberPaired(ctx, sm, nil)
	if len(known) > 0 {
		sm.Put(ctx, pairedSessionKey, known)
	}
}

func PairedDisplays(ctx context.Context, sm *scs.SessionManager) []string {
	codes, _ := sm.Get(ctx, pairedSessionKey).([]string)
	return slices.Clone(codes)
}
