package infra

import (
	"fmt"
	"strings"

	"portfolio-backend/middleware/ratelimit/domain"

	"github.com/seancfoley/ipaddress-go/ipaddr"
)

// ExemptList guarda IPs e faixas CIDR isentos das janelas deslizantes.
//
// Chaves que não são IP (ex.: "unknown" ou valor de header customizado) nunca casam.
type ExemptList struct {
	trieV4 *ipaddr.IPv4AddressTrie
	trieV6 *ipaddr.IPv6AddressTrie
	size   int
}

// ParseExemptList aceita entradas como "127.0.0.1", "10.0.0.0/8" ou "::1".
// Entradas vazias são ignoradas; qualquer outra inválida é erro de configuração.
func ParseExemptList(entries []string) (*ExemptList, error) {
	l := &ExemptList{
		trieV4: &ipaddr.IPv4AddressTrie{},
		trieV6: &ipaddr.IPv6AddressTrie{},
	}

	for _, raw := range entries {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		addr, err := ipaddr.NewIPAddressString(raw).ToAddress()
		if err != nil {
			return nil, fmt.Errorf("exempt entry %q: %w", raw, err)
		}
		switch {
		case addr.IsIPv4():
			l.trieV4.Add(addr.ToIPv4())
		case addr.IsIPv6():
			l.trieV6.Add(addr.ToIPv6())
		default:
			return nil, fmt.Errorf("exempt entry %q: not an IP address", raw)
		}
		l.size++
	}
	return l, nil
}

// Len devolve quantas entradas foram carregadas.
func (l *ExemptList) Len() int {
	if l == nil {
		return 0
	}
	return l.size
}

// IsExempt implementa domain.Exemptions.
func (l *ExemptList) IsExempt(key domain.Key) bool {
	if l == nil || l.size == 0 {
		return false
	}

	addr, err := ipaddr.NewIPAddressString(string(key)).ToAddress()
	if err != nil || addr == nil {
		return false
	}

	if addr.IsIPv4() {
		return l.trieV4.ElementContains(addr.ToIPv4())
	}
	if addr.IsIPv6() {
		return l.trieV6.ElementContains(addr.ToIPv6())
	}
	return false
}
