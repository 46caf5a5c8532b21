package command

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// PermissionManageGuild is the "Manage Server" bit.
const PermissionManageGuild int64 = discordgo.PermissionManageServer

// PermissionNames maps Discord permission bits to the labels shown to users.
var PermissionNames = map[int64]string{
	discordgo.PermissionCreateInstantInvite:   "Create Instant Invite",
	discordgo.PermissionKickMembers:           "Kick Members",
	discordgo.PermissionBanMembers:            "Ban Members",
	discordgo.PermissionAdministrator:         "Administrator",
	discordgo.PermissionManageChannels:        "Manage Channels",
	PermissionManageGuild:                     "Manage Server",
	discordgo.PermissionAddReactions:          "Add Reactions",
	discordgo.PermissionViewAuditLogs:         "View Audit Logs",
	discordgo.PermissionViewChannel:           "View Channel",
	discordgo.PermissionSendMessages:          "Send Messages",
	discordgo.PermissionSendTTSMessages:       "Send TTS Messages",
	discordgo.PermissionManageMessages:        "Manage Messages",
	discordgo.PermissionEmbedLinks:            "Embed Links",
	discordgo.PermissionAttachFiles:           "Attach Files",
	discordgo.PermissionReadMessageHistory:    "Read Message History",
	discordgo.PermissionMentionEveryone:       "Mention Everyone",
	discordgo.PermissionUseExternalEmojis:     "Use External Emojis",
	discordgo.PermissionManageThreads:         "Manage Threads",
	discordgo.PermissionCreatePublicThreads:   "Create Public Threads",
	discordgo.PermissionCreatePrivateThreads:  "Create Private Threads",
	discordgo.PermissionSendMessagesInThreads: "Send Messages in Threads",
	discordgo.PermissionVoicePrioritySpeaker:  "Priority Speaker",
	discordgo.PermissionVoiceStreamVideo:      "Stream Video",
	discordgo.PermissionVoiceConnect:          "Connect to Voice Channel",
	discordgo.PermissionVoiceSpeak:            "Speak",
	discordgo.PermissionVoiceMuteMembers:      "Mute Members",
	discordgo.PermissionVoiceDeafenMembers:    "Deafen Members",
	discordgo.PermissionVoiceMoveMembers:      "Move Members",
	discordgo.PermissionVoiceUseVAD:           "Use Voice Activity Detection",
	discordgo.PermissionVoiceRequestToSpeak:   "Request to Speak",
	discordgo.PermissionChangeNickname:        "Change Nickname",
	discordgo.PermissionManageNicknames:       "Manage Nicknames",
	discordgo.PermissionManageRoles:           "Manage Roles",
	discordgo.PermissionManageWebhooks:        "Manage Webhooks",
	discordgo.PermissionManageEvents:          "Manage Events",
	discordgo.PermissionModerateMembers:       "Moderate Members",
}

// PermissionName returns the label for a permission bit, or its hex value.
func PermissionName(p int64) string {
	if name, ok := PermissionNames[p]; ok {
		return name
	}
	return fmt.Sprintf("0x%x", p)
}

// PermissionList renders permission bits as a comma separated list of labels.
func PermissionList(perms []int64) string {
	names := make([]string, len(perms))
	for i, p := range perms {
		names[i] = PermissionName(p)
	}
	return strings.Join(names, ", ")
}

// MissingPermissions returns the required bits not present in held.
// Administrator grants everything.
func MissingPermissions(held int64, required []int64) []int64 {
	if held&discordgo.PermissionAdministrator != 0 {
		return nil
	}
	var missing []int64
	for _, p := range required {
		if held&p != p {
			missing = append(missing, p)
		}
	}
	return missing
}

// combinePermissions ORs permission bits together.
func combinePermissions(perms []int64) int64 {
	var mask int64
	for _, p := range perms {
		mask |= p
	}
	return mask
}
