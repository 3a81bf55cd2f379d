package chat

// User-facing strings. They are fixed and never include error details.
const (
	// InitFailedMessage is shown when the session could not be set up.
	InitFailedMessage = "No se pudo inicializar el chat. Por favor, verifica la configuración de la API Key y refresca la página."

	// StreamFailedMessage is shown when a reply failed mid-conversation.
	StreamFailedMessage = "Lo siento, ha ocurrido un error al procesar tu solicitud. Por favor, inténtalo de nuevo."
)

// StreamFailedMarkup replaces the reply that failed. It is written by the
// controller itself and is the only MODEL content marked as trusted.
const StreamFailedMarkup = `<p style="color: red;">` + StreamFailedMessage + `</p>`
