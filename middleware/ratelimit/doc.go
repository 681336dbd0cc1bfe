// Package ratelimit fornece os adapters HTTP (net/http) do controle de admissão do chat
// e do limite de concorrência.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (Gate, acquire/timeout) sem net/http
//   - infra: implementações concretas (janelas deslizantes, orçamento de tokens, semáforo, stats)
//   - ratelimit (este pacote): extração de chave + tradução de decisões para status/headers/JSON
//
// Fluxo no handler de chat:
//
//  1. Extrai a chave do cliente (header configurado, XFF, X-Real-IP, RemoteAddr)
//  2. Decodifica o corpo e chama Gate.Admit
//  3. Se recusado, WriteRejection responde 400 (entrada) ou 429 (janelas/tokens)
//  4. Se permitido, chama o provedor e registra o uso com Admission.Complete
//
// O gate precisa do corpo (tamanho da mensagem, max_tokens), por isso não é um middleware.
// ConcurrencyMiddleware continua sendo um middleware comum (503 quando não há vaga).
package ratelimit
