package archive

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"testing"
	"time"

	"github.com/AdamBeresnev/tourney-live/internal/bracket"
	"github.com/AdamBeresnev/tourney-live/internal/service"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	inputs []*s3.PutObjectInput
	bodies [][]byte
	err    error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.inputs = append(f.inputs, in)
	f.bodies = append(f.bodies, body)
	return &s3.PutObjectOutput{ETag: aws.String(`"abc"`)}, nil
}

func finishedTournament(t *testing.T) *bracket.Tournament {
	t.Helper()
	s := service.NewTournamentService()
	tour, err := s.CreateTournament(context.Background(), service.CreateTournamentInput{
		Name:   "Archive",
		Format: bracket.SingleElimination,
		Teams:  []service.TeamInput{{Name: "Lions"}, {Name: "Tigers"}},
	})
	require.NoError(t, err)

	final := tour.MatchesInOrder()[0]
	_, err = s.SetScore(tour.ID, final.ID, 1, 5)
	require.NoError(t, err)
	tour, err = s.DetermineWinner(tour.ID, final.ID, 0)
	require.NoError(t, err)
	require.Equal(t, bracket.TournamentCompleted, tour.Status)
	return tour
}

func TestArchiveUploadsSnapshot(t *testing.T) {
	client := &fakeS3{}
	a := newS3Archiver(client, "results", "tournaments")
	a.now = func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) }

	tour := finishedTournament(t)
	require.NoError(t, a.Archive(context.Background(), tour))

	require.Len(t, client.inputs, 1)
	in := client.inputs[0]
	assert.Equal(t, "results", aws.ToString(in.Bucket))
	assert.Equal(t, "tournaments/"+tour.ID.String()+"/v"+strconv.FormatUint(tour.Version, 10)+".json", aws.ToString(in.Key))
	assert.Equal(t, "application/json", aws.ToString(in.ContentType))

	var doc struct {
		ArchivedAt time.Time `json:"archived_at"`
		Tournament struct {
			Name       string `json:"name"`
			ChampionID string `json:"champion_id"`
		} `json:"tournament"`
		State struct {
			Status string `json:"status"`
		} `json:"state"`
	}
	require.NoError(t, json.Unmarshal(client.bodies[0], &doc))
	assert.Equal(t, "Archive", doc.Tournament.Name)
	assert.Equal(t, tour.ChampionID.String(), doc.Tournament.ChampionID)
	assert.Equal(t, "completed", doc.State.Status)
	assert.True(t, doc.ArchivedAt.Equal(a.now()))
}

func TestArchiveWrapsUploadError(t *testing.T) {
	failure := errors.New("access denied")
	a := newS3Archiver(&fakeS3{err: failure}, "results", "")

	err := a.Archive(context.Background(), finishedTournament(t))
	require.ErrorIs(t, err, failure)
	assert.Contains(t, err.Error(), "key: ")
}

func TestNewS3ArchiverNeedsBucket(t *testing.T) {
	_, err := NewS3Archiver(context.Background(), Config{Region: "auto"})
	assert.Error(t, err)

	a, err := NewS3Archiver(context.Background(), Config{
		Bucket:          "results",
		Region:          "auto",
		Endpoint:        "http://localhost:9000",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		UsePathStyle:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, "results", a.bucket)
}
