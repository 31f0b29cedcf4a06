package tagherald

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
)

const tagNameSeparator = ", "

// subscribeCandidates returns the tags from allTags the user hasn't
// subscribed to yet, preserving the order of allTags. An empty result
// means the user is subscribed to every available tag.
func subscribeCandidates(
	allTags []discordgo.ForumTag,
	subscribed map[string]bool,
) []discordgo.ForumTag {
	offer := make([]discordgo.ForumTag, 0, len(allTags))
	for _, tag := range allTags {
		if !subscribed[tag.Name] {
			offer = append(offer, tag)
		}
	}
	return offer
}

// unsubscribeCandidates returns the tags from allTags the user is
// currently subscribed to, preserving the order of allTags. An empty
// result means the user has no subscriptions.
func unsubscribeCandidates(
	allTags []discordgo.ForumTag,
	subscribed map[string]bool,
) []discordgo.ForumTag {
	offer := make([]discordgo.ForumTag, 0, len(allTags))
	for _, tag := range allTags {
		if subscribed[tag.Name] {
			offer = append(offer, tag)
		}
	}
	return offer
}

// tagNameList joins tag names into a single comma-separated string
func tagNameList(tags []discordgo.ForumTag) string {
	names := make([]string, len(tags))
	for i, tag := range tags {
		names[i] = tag.Name
	}
	return strings.Join(names, tagNameSeparator)
}

// mentionString builds a message fragment mentioning each given user ID
func mentionString(userIDs []string) string {
	mentions := make([]string, len(userIDs))
	for i, id := range userIDs {
		mentions[i] = fmt.Sprintf("<@%s>", id)
	}
	return strings.Join(mentions, " ")
}
