package i18n

import "strings"

var translations = map[string]string{
	"failed to like":                       "Não foi possível curtir",
	"failed to send message":               "Erro ao enviar mensagem",
	"failed to send file":                  "Erro ao enviar ficheiro",
	"failed to load messages":              "Erro ao carregar mensagens",
	"failed to load conversations":         "Erro ao carregar conversas",
	"failed to start conversation":         "Erro ao iniciar conversa",
	"failed to load feed":                  "Erro ao carregar o feed",
	"failed to load notifications":         "Erro ao carregar notificações",
	"not authenticated":                    "Sessão expirada, inicie sessão novamente",
	"invalid username or password":         "Nome de utilizador ou palavra-passe incorretos",
	"connection lost":                      "Ligação perdida",
	"image":                                "Imagem",
	"video":                                "Vídeo",
	"audio":                                "Áudio",
	"file":                                 "Ficheiro",
	"typing":                               "a escrever...",
	"no messages yet":                      "Ainda sem mensagens",
	"no conversations yet":                 "Ainda sem conversas",
	"no results":                           "Sem resultados",
	"unknown command":                      "Comando desconhecido",
	"message cannot be empty":              "A mensagem não pode estar vazia",
	"a send for this message is in flight": "Esta mensagem já está a ser enviada",
}

var prefixTranslations = map[string]string{
	"failed to open file:":   "Erro ao abrir o ficheiro",
	"failed to parse token:": "Token inválido",
}

func Translate(message string) string {
	if translated, ok := translations[message]; ok {
		return translated
	}
	for prefix, translated := range prefixTranslations {
		if strings.HasPrefix(message, prefix) {
			return translated
		}
	}
	return message
}
