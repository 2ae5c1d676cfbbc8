package story

// Flag keys written by the desktop apps and read by the stage conditions.
const (
	KeyChatUnlocked           = "app.chat.unlocked"
	KeyQuestionnaireCompleted = "app.questionnaire.completed"
	KeyPhotoUnlocked          = "gallery.photo_07.unlocked"
	KeyPhotoPasswordSolved    = "password.photo_07.solved"
	KeyBrowserLastURL         = "browser.last_url"

	KeyChapter               = "save.chapter"
	KeyJigsawSolved          = "puzzle.jigsaw.solved"
	KeyPhotoPuzzleSolved     = "puzzle.photo_puzzle.solved" // legacy id of the jigsaw
	KeyNotebookSolved        = "password.notebook.solved"
	KeyBlogPasswordSolved    = "password.blog.solved"
	KeyBlogAdminUnlocked     = "app.blog.admin_unlocked"
	KeyUnknownContactReplied = "chat.unknown_contact.replied"
	KeyHiddenAlbumSolved     = "password.hidden_album.solved"
	KeyHiddenAlbumUnlocked   = "gallery.hidden_album.unlocked"
)

// Keys written by the call gate itself.
const (
	KeyStage1Triggered = "call.stage1_triggered"
	KeyStage2Triggered = "call.stage2_triggered"
	KeyBugCallUnlocked = "app.bugcall.unlocked"
)

// BrowserKeywords are the page fragments that count as having found the company.
var BrowserKeywords = []string{"companyname", "whistleblower"}

// ProgressKeys lists every key the call gate writes. Reset tooling clears exactly these.
func ProgressKeys() []string {
	return []string{KeyStage1Triggered, KeyStage2Triggered, KeyBugCallUnlocked}
}
