// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - WindowStore: logs de janela deslizante por chave (minuto e dia) com limpeza periódica
//   - Budget: orçamento global de tokens com reset preguiçoso
//   - ChanPool: semáforo simples para limite de concorrência
//   - ExemptList: faixas de IP que não passam pelas janelas
//   - RedisStatsStore / PrometheusStatsStore: estatísticas das decisões
package infra
