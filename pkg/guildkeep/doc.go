// Package guildkeep defines the neutral contracts shared by every layer of
// the bot: the record model, the persistence and channel collaborator
// interfaces, the command boundary, and the error taxonomy.
package guildkeep
