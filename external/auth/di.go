package auth

import (
	"github.com/foxseedlab/studentize/external/redis"
	"github.com/foxseedlab/studentize/internal/auth"
	"github.com/foxseedlab/studentize/internal/config"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (auth.Verifier, error) {
		c := do.MustInvoke[*config.Config](i)
		cache := do.MustInvoke[*redis.Client](i)
		return NewJWTVerifier(c.AuthJWTSecret, c.AuthJWTIssuer, c.InternalAPIToken, cache), nil
	})
}
