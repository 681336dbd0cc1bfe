// Package application contém os casos de uso do controle de admissão do chat
// e do limite de concorrência.
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Ex.: Gate.Admit(ctx, req) retorna uma Decision (permitido ou motivo da recusa +
// retry-after) e, quando permitido, uma Admission para registrar o uso real.
package application
