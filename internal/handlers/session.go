package handlers

import (
	"encoding/gob"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"examprep/internal/config"
)

func init() {
	// Session values are gob-encoded; slices need explicit registration.
	gob.Register([]string{})
}

// recentQuestionsKey is the session key holding the IDs of recently served
// questions. The selector excludes these so a session does not see the same
// question twice in a row; the window is bounded so exclusion never starves
// selection permanently.
const recentQuestionsKey = "recent_questions"

func recentQuestions(c *gin.Context) map[string]bool {
	session := sessions.Default(c)
	raw := session.Get(recentQuestionsKey)
	ids, ok := raw.([]string)
	if !ok {
		return nil
	}
	exclude := make(map[string]bool, len(ids))
	for _, id := range ids {
		exclude[id] = true
	}
	return exclude
}

func rememberQuestions(c *gin.Context, questionIDs ...string) error {
	session := sessions.Default(c)
	ids, _ := session.Get(recentQuestionsKey).([]string)
	for _, id := range questionIDs {
		ids = append(ids, id)
	}
	if len(ids) > config.RecentQuestionWindow {
		ids = ids[len(ids)-config.RecentQuestionWindow:]
	}
	session.Set(recentQuestionsKey, ids)
	return session.Save()
}

func clearRecentQuestions(c *gin.Context) error {
	session := sessions.Default(c)
	session.Delete(recentQuestionsKey)
	return session.Save()
}
