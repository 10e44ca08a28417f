package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"examprep/internal/models"
)

func statsFixture(t *testing.T) (*routerFixture, []*http.Cookie) {
	t.Helper()
	f := newRouterFixture(t)
	f.seedQuestions(t,
		testQuestion("q1", 1, "cardiology"),
		testQuestion("q2", 2, "cardiology"),
		testQuestion("q3", 3, "neurology"),
	)
	cookies := f.login(t)

	// q1 right, q2 wrong, q3 right.
	answers := []struct{ questionID, choice string }{
		{"q1", "A"},
		{"q2", "B"},
		{"q3", "A"},
	}
	for _, a := range answers {
		w := f.do(t, http.MethodPost, "/v1/quiz/answer", `{"question_id":"`+a.questionID+`","choice":"`+a.choice+`"}`, cookies)
		require.Equal(t, http.StatusOK, w.Code)
	}
	return f, cookies
}

func TestStatsHandler_UserStats(t *testing.T) {
	f, cookies := statsFixture(t)

	w := f.do(t, http.MethodGet, "/v1/stats", "", cookies)
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.UserStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ana", resp.Username)
	assert.Equal(t, 3, resp.TotalAnswered)
	assert.Equal(t, 2, resp.TotalCorrect)
	assert.InDelta(t, 66.67, resp.Accuracy, 0.01)
}

func TestStatsHandler_TopicPerformance(t *testing.T) {
	f, cookies := statsFixture(t)

	w := f.do(t, http.MethodGet, "/v1/stats/topics", "", cookies)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Topics []models.TopicPerformance `json:"topics"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Topics, 2)

	assert.Equal(t, "cardiology", resp.Topics[0].Topic)
	assert.Equal(t, 2, resp.Topics[0].QuestionsAnswered)
	assert.InDelta(t, 50.0, resp.Topics[0].Accuracy, 0.01)

	assert.Equal(t, "neurology", resp.Topics[1].Topic)
	assert.InDelta(t, 100.0, resp.Topics[1].Accuracy, 0.01)
}

func TestStatsHandler_TopicMastery(t *testing.T) {
	f, cookies := statsFixture(t)

	// A third answered cardiology question pushes that topic past the
	// three-question floor; neurology stays below it.
	f.seedQuestions(t, testQuestion("q4", 4, "cardiology"))
	w := f.do(t, http.MethodPost, "/v1/quiz/answer", `{"question_id":"q4","choice":"A"}`, cookies)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/v1/stats/mastery", "", cookies)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Topics []models.TopicMastery `json:"topics"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Topics, 2)

	levels := make(map[string]int, len(resp.Topics))
	for _, topic := range resp.Topics {
		levels[topic.Topic] = topic.Level
	}
	assert.Equal(t, 1, levels["cardiology"])
	assert.Equal(t, 0, levels["neurology"])
}

func TestStatsHandler_WeakestTopic(t *testing.T) {
	f, cookies := statsFixture(t)

	w := f.do(t, http.MethodGet, "/v1/stats/weakest-topic", "", cookies)
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.TopicPerformance
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "cardiology", resp.Topic)
}

func TestStatsHandler_WeakestTopic_NoHistory(t *testing.T) {
	f := newRouterFixture(t)
	f.seedQuestions(t, testQuestion("q1", 1, "cardiology"))
	cookies := f.login(t)

	w := f.do(t, http.MethodGet, "/v1/stats/weakest-topic", "", cookies)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStatsHandler_History(t *testing.T) {
	f, cookies := statsFixture(t)

	w := f.do(t, http.MethodGet, "/v1/stats/history", "", cookies)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Events []models.AnswerEvent `json:"events"`
		Count  int                  `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 3, resp.Count)

	// Newest first.
	assert.Equal(t, "q3", resp.Events[0].QuestionID)
	assert.Equal(t, "q1", resp.Events[2].QuestionID)
}

func TestStatsHandler_History_Limit(t *testing.T) {
	f, cookies := statsFixture(t)

	w := f.do(t, http.MethodGet, "/v1/stats/history?limit=1", "", cookies)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Events []models.AnswerEvent `json:"events"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Events, 1)

	w = f.do(t, http.MethodGet, "/v1/stats/history?limit=zero", "", cookies)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatsHandler_ResetProgress(t *testing.T) {
	f, cookies := statsFixture(t)

	w := f.do(t, http.MethodDelete, "/v1/stats/progress", "", cookies)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/v1/stats", "", cookies)
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.UserStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.TotalAnswered)

	// The catalog survives a progress reset.
	w = f.do(t, http.MethodGet, "/v1/quiz/question/q1", "", cookies)
	assert.Equal(t, http.StatusOK, w.Code)
}
