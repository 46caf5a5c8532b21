package command

import (
	"slices"

	"github.com/bwmarrin/discordgo"
)

// BuildSchema converts metadata into the slash command definition Discord expects.
func BuildSchema(m Metadata) (*discordgo.ApplicationCommand, error) {
	dm := m.DMPermission
	cmd := &discordgo.ApplicationCommand{
		Type:         discordgo.ChatApplicationCommand,
		Name:         m.Name,
		Description:  m.Description,
		DMPermission: &dm,
	}

	switch {
	case m.DefaultMemberPermissions != nil:
		perms := *m.DefaultMemberPermissions
		cmd.DefaultMemberPermissions = &perms
	case len(m.RequiredPermissions) > 0:
		perms := combinePermissions(m.RequiredPermissions)
		cmd.DefaultMemberPermissions = &perms
	}

	for _, o := range m.Options {
		opt, err := buildOption(m.Name, o)
		if err != nil {
			return nil, err
		}
		cmd.Options = append(cmd.Options, opt)
	}
	return cmd, nil
}

func buildOption(command string, o Option) (*discordgo.ApplicationCommandOption, error) {
	unsupported := func(attr string) error {
		return &UnsupportedOptionAttributeError{Command: command, Option: o.Name, Attribute: attr, Type: o.Type}
	}

	switch o.Type {
	case OptionString, OptionInteger, OptionNumber, OptionBoolean, OptionUser,
		OptionChannel, OptionRole, OptionMentionable, OptionAttachment:
	default:
		return nil, &UnsupportedOptionTypeError{Command: command, Option: o.Name, Type: o.Type}
	}

	opt := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionType(o.Type),
		Name:        o.Name,
		Description: o.Description,
		Required:    o.Required,
	}

	if o.Choices != nil {
		if !o.Type.scalar() {
			return nil, unsupported("choices")
		}
		opt.Choices = make([]*discordgo.ApplicationCommandOptionChoice, len(o.Choices))
		for i, c := range o.Choices {
			opt.Choices[i] = &discordgo.ApplicationCommandOptionChoice{Name: c.Name, Value: c.Value}
		}
	}

	if o.Autocomplete {
		if !o.Type.scalar() {
			return nil, unsupported("autocomplete")
		}
		if len(o.Choices) > 0 {
			return nil, unsupported("autocomplete with choices")
		}
		opt.Autocomplete = true
	}

	if o.MinValue != nil || o.MaxValue != nil {
		if o.Type != OptionInteger && o.Type != OptionNumber {
			return nil, unsupported("min/max value")
		}
		if o.MinValue != nil {
			v := *o.MinValue
			opt.MinValue = &v
		}
		if o.MaxValue != nil {
			// discordgo drops a zero max_value when encoding.
			if *o.MaxValue == 0 {
				return nil, unsupported("max value 0")
			}
			opt.MaxValue = *o.MaxValue
		}
	}

	if o.MinLength != nil || o.MaxLength != nil {
		if o.Type != OptionString {
			return nil, unsupported("min/max length")
		}
		if o.MinLength != nil {
			v := *o.MinLength
			opt.MinLength = &v
		}
		if o.MaxLength != nil {
			if *o.MaxLength < 1 {
				return nil, unsupported("max length below 1")
			}
			opt.MaxLength = *o.MaxLength
		}
	}

	if o.ChannelTypes != nil {
		if o.Type != OptionChannel {
			return nil, unsupported("channel types")
		}
		opt.ChannelTypes = slices.Clone(o.ChannelTypes)
	}

	return opt, nil
}
