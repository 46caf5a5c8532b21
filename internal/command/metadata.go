package command

import (
	"slices"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/commandgate/internal/features"
)

// OptionType is the kind of value a slash command option accepts.
// Values match Discord's application command option types.
type OptionType int

const (
	OptionString      = OptionType(discordgo.ApplicationCommandOptionString)
	OptionInteger     = OptionType(discordgo.ApplicationCommandOptionInteger)
	OptionBoolean     = OptionType(discordgo.ApplicationCommandOptionBoolean)
	OptionUser        = OptionType(discordgo.ApplicationCommandOptionUser)
	OptionChannel     = OptionType(discordgo.ApplicationCommandOptionChannel)
	OptionRole        = OptionType(discordgo.ApplicationCommandOptionRole)
	OptionMentionable = OptionType(discordgo.ApplicationCommandOptionMentionable)
	OptionNumber      = OptionType(discordgo.ApplicationCommandOptionNumber)
	OptionAttachment  = OptionType(discordgo.ApplicationCommandOptionAttachment)
)

func (t OptionType) String() string {
	switch t {
	case OptionString:
		return "string"
	case OptionInteger:
		return "integer"
	case OptionBoolean:
		return "boolean"
	case OptionUser:
		return "user"
	case OptionChannel:
		return "channel"
	case OptionRole:
		return "role"
	case OptionMentionable:
		return "mentionable"
	case OptionNumber:
		return "number"
	case OptionAttachment:
		return "attachment"
	}
	return "unknown"
}

// scalar reports whether choices and autocomplete apply to the type.
func (t OptionType) scalar() bool {
	return t == OptionString || t == OptionInteger || t == OptionNumber
}

// Choice is a fixed (label, value) pair offered for an option.
type Choice struct {
	Name  string
	Value any
}

// Option describes one slash command option.
type Option struct {
	Name        string
	Description string
	Type        OptionType
	Required    bool

	// String, Integer and Number only.
	Choices      []Choice
	Autocomplete bool

	// Integer and Number only.
	MinValue *float64
	MaxValue *float64

	// String only.
	MinLength *int
	MaxLength *int

	// Channel only.
	ChannelTypes []discordgo.ChannelType
}

// Metadata is the declarative description of a command.
type Metadata struct {
	Name        string
	Description string

	// RequiredPermissions must all be held by the invoking member (guild only).
	RequiredPermissions []int64
	// RequiredFeatures must all be enabled for the command to run.
	RequiredFeatures []features.Feature

	Options []Option

	// DefaultMemberPermissions overrides the bitmask derived from
	// RequiredPermissions. A pointer to 0 hides the command from everyone but admins.
	DefaultMemberPermissions *int64

	// DMPermission allows the command outside of guilds.
	DMPermission bool
}

// clone returns a deep copy so registered metadata cannot be mutated by the caller.
func (m Metadata) clone() Metadata {
	out := m
	out.RequiredPermissions = slices.Clone(m.RequiredPermissions)
	out.RequiredFeatures = slices.Clone(m.RequiredFeatures)
	if m.DefaultMemberPermissions != nil {
		v := *m.DefaultMemberPermissions
		out.DefaultMemberPermissions = &v
	}
	if m.Options != nil {
		out.Options = make([]Option, len(m.Options))
		for i, o := range m.Options {
			o.Choices = slices.Clone(o.Choices)
			o.ChannelTypes = slices.Clone(o.ChannelTypes)
			o.MinValue = clonePtr(o.MinValue)
			o.MaxValue = clonePtr(o.MaxValue)
			o.MinLength = clonePtr(o.MinLength)
			o.MaxLength = clonePtr(o.MaxLength)
			out.Options[i] = o
		}
	}
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Ptr is a small helper for the optional numeric fields of Option.
func Ptr[T any](v T) *T { return &v }

// Definition pairs a command's metadata with the factory that builds its handler.
type Definition struct {
	Metadata *Metadata
	New      func() Command
}
