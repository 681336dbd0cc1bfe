package llm

import "context"

// DemoReply é devolvida quando nenhuma chave de API está configurada.
const DemoReply = "Hi — this is a demo response because the GROQ_API_KEY is not configured. " +
	"Ask me about Adam's skills, projects, or experience and I'll answer."

// DemoProvider responde sem chamar rede.
type DemoProvider struct {
	Reply string
}

func (d DemoProvider) Complete(context.Context, Request) (Completion, error) {
	reply := d.Reply
	if reply == "" {
		reply = DemoReply
	}
	return Completion{Text: reply, Demo: true}, nil
}
