// Package story defines the two narrative stages of the bug call and their built-in dialogue graphs.
package story

import "github.com/aretw0/callgate/pkg/domain"

// Graph ids of the built-in call sequences.
const (
	GraphStage1 = "bugcall.stage1"
	GraphStage2 = "bugcall.stage2"
)

// Stage1 fires once the player has met the contact, filled the questionnaire,
// seen the photo and found the company online.
func Stage1() domain.Stage {
	return domain.Stage{
		Ordinal: 1,
		Name:    "first contact",
		Groups: []domain.ConditionGroup{
			domain.Group("chat", domain.Flag(KeyChatUnlocked)),
			domain.Group("questionnaire", domain.Flag(KeyQuestionnaireCompleted)),
			domain.Group("photo", domain.Flag(KeyPhotoUnlocked), domain.Flag(KeyPhotoPasswordSolved)),
			domain.Group("browser", domain.Contains(KeyBrowserLastURL, BrowserKeywords...)),
		},
		TriggeredKey: KeyStage1Triggered,
		UnlockKey:    KeyBugCallUnlocked,
		GraphID:      GraphStage1,
	}
}

// Stage2 fires in chapter two once every remaining secret has been uncovered.
func Stage2() domain.Stage {
	return domain.Stage{
		Ordinal: 2,
		Name:    "the album",
		Groups: []domain.ConditionGroup{
			domain.Group("chapter", domain.AtLeast(KeyChapter, 2)),
			domain.Group("jigsaw", domain.Flag(KeyJigsawSolved), domain.Flag(KeyPhotoPuzzleSolved)),
			domain.Group("notebook", domain.Flag(KeyNotebookSolved)),
			domain.Group("blog", domain.Flag(KeyBlogPasswordSolved), domain.Flag(KeyBlogAdminUnlocked)),
			domain.Group("unknown contact", domain.Flag(KeyUnknownContactReplied)),
			domain.Group("hidden album", domain.Flag(KeyHiddenAlbumSolved), domain.Flag(KeyHiddenAlbumUnlocked)),
		},
		TriggeredKey: KeyStage2Triggered,
		UnlockKey:    KeyBugCallUnlocked,
		GraphID:      GraphStage2,
	}
}

// Stages returns both stages in ordinal order.
func Stages() []domain.Stage {
	return []domain.Stage{Stage1(), Stage2()}
}
