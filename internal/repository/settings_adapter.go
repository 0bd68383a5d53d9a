package repository

import (
	"context"
)

// SettingsAdapter satisfies domain.SettingsReader over a SettingsRepository,
// so typed accessors (domain.StringSetting et al.) can read through the
// persisted settings store. Any repository error, including ErrNotFound,
// resolves to "absent" — settings reads are best-effort on hot paths.
// Callers needing strict behavior should call Repo.Get directly instead of
// going through this type.
type SettingsAdapter struct {
	Repo SettingsRepository
	Ctx  context.Context
}

func (a SettingsAdapter) Get(key string) (string, bool) {
	v, err := a.Repo.Get(a.Ctx, key)
	if err != nil {
		return "", false
	}
	return v, true
}
