package llm

import "github.com/pkoukk/tiktoken-go"

// TokenEstimator conta tokens com cl100k_base. Sem encoding carregado (zero value,
// ou falha ao baixar o BPE) cai para ~4 caracteres por token.
type TokenEstimator struct {
	enc *tiktoken.Tiktoken
}

// NewTokenEstimator tenta carregar o encoding; o erro é informativo, o estimador
// devolvido funciona de qualquer jeito.
func NewTokenEstimator(encoding string) (*TokenEstimator, error) {
	if encoding == "" {
		encoding = "cl100k_base"
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return &TokenEstimator{}, err
	}
	return &TokenEstimator{enc: enc}, nil
}

func (e *TokenEstimator) Count(text string) int {
	if text == "" {
		return 0
	}
	if e != nil && e.enc != nil {
		return len(e.enc.Encode(text, nil, nil))
	}
	return (len(text) + 3) / 4
}

// PromptTokens conta system + user, sem a resposta.
func (e *TokenEstimator) PromptTokens(req Request) int {
	return e.Count(req.System) + e.Count(req.User)
}
