package ports

// Announcer receives user-visible messages: order summaries, garnish notes and
// the generic ready message.
type Announcer interface {
	Announce(text string)
}
