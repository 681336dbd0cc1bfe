// utilitário pequeno para formatação consistente de valores numéricos em headers.

package ratelimit

import (
	"math"
	"strconv"
	"time"
)

func formatInt(v int) string { return strconv.Itoa(v) }

// seconds arredonda para cima: Retry-After nunca pode sugerir voltar cedo demais.
func seconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}
