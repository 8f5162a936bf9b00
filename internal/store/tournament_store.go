package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/AdamBeresnev/tourney-live/internal/bracket"
	"github.com/AdamBeresnev/tourney-live/internal/timer"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type TournamentStore struct {
	db *sqlx.DB
}

func NewTournamentStore(db *sqlx.DB) *TournamentStore {
	return &TournamentStore{db: db}
}

type tournamentRow struct {
	ID             uuid.UUID  `db:"id"`
	Name           string     `db:"name"`
	Format         string     `db:"format"`
	Options        string     `db:"options"`
	Status         string     `db:"status"`
	Phase          string     `db:"phase"`
	CurrentMatchID *uuid.UUID `db:"current_match_id"`
	ChampionID     *uuid.UUID `db:"champion_id"`
	Display        string     `db:"display"`
	TimerDefault   int        `db:"timer_default_seconds"`
	Version        int64      `db:"version"`
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
}

type teamRow struct {
	ID           uuid.UUID      `db:"id"`
	TournamentID uuid.UUID      `db:"tournament_id"`
	Position     int            `db:"position"`
	Name         string         `db:"name"`
	Seed         *int           `db:"seed"`
	Player1      sql.NullString `db:"player_1"`
	Player2      sql.NullString `db:"player_2"`
}

type roundRow struct {
	TournamentID   uuid.UUID `db:"tournament_id"`
	Index          int       `db:"round_index"`
	Side           string    `db:"bracket_side"`
	Number         int       `db:"round_number"`
	RepeatPairings string    `db:"repeat_pairings"`
}

type matchRow struct {
	ID                uuid.UUID  `db:"id"`
	TournamentID      uuid.UUID  `db:"tournament_id"`
	RoundIndex        int        `db:"round_index"`
	BracketSide       string     `db:"bracket_side"`
	RoundNumber       int        `db:"round_number"`
	MatchOrder        int        `db:"match_order"`
	Slot1Kind         string     `db:"slot_1_kind"`
	Slot1TeamID       *uuid.UUID `db:"slot_1_team_id"`
	Slot1SourceID     *uuid.UUID `db:"slot_1_source_id"`
	Slot1Outcome      string     `db:"slot_1_outcome"`
	Slot2Kind         string     `db:"slot_2_kind"`
	Slot2TeamID       *uuid.UUID `db:"slot_2_team_id"`
	Slot2SourceID     *uuid.UUID `db:"slot_2_source_id"`
	Slot2Outcome      string     `db:"slot_2_outcome"`
	Score1            int        `db:"score_1"`
	Score2            int        `db:"score_2"`
	WinnerID          *uuid.UUID `db:"winner_id"`
	State             string     `db:"state"`
	WinnerNextMatchID *uuid.UUID `db:"winner_next_match_id"`
	WinnerNextSlot    *int       `db:"winner_next_slot"`
	LoserNextMatchID  *uuid.UUID `db:"loser_next_match_id"`
	LoserNextSlot     *int       `db:"loser_next_slot"`
	IsBye             bool       `db:"is_bye"`
}

const (
	upsertTournamentQuery = `
		INSERT INTO tournaments (id, name, format, options, status, phase, current_match_id, champion_id, display, timer_default_seconds, version, created_at, updated_at)
		VALUES (:id, :name, :format, :options, :status, :phase, :current_match_id, :champion_id, :display, :timer_default_seconds, :version, :created_at, :updated_at)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			status = excluded.status,
			phase = excluded.phase,
			current_match_id = excluded.current_match_id,
			champion_id = excluded.champion_id,
			display = excluded.display,
			timer_default_seconds = excluded.timer_default_seconds,
			version = excluded.version,
			updated_at = excluded.updated_at
		WHERE tournaments.version <= excluded.version`
	insertTeamQuery = `
		INSERT INTO teams (id, tournament_id, position, name, seed, player_1, player_2)
		VALUES (:id, :tournament_id, :position, :name, :seed, :player_1, :player_2)`
	insertRoundQuery = `
		INSERT INTO rounds (tournament_id, round_index, bracket_side, round_number, repeat_pairings)
		VALUES (:tournament_id, :round_index, :bracket_side, :round_number, :repeat_pairings)`
	insertMatchQuery = `
		INSERT INTO matches (id, tournament_id, round_index, bracket_side, round_number, match_order,
			slot_1_kind, slot_1_team_id, slot_1_source_id, slot_1_outcome,
			slot_2_kind, slot_2_team_id, slot_2_source_id, slot_2_outcome,
			score_1, score_2, winner_id, state, winner_next_match_id, winner_next_slot, loser_next_match_id, loser_next_slot, is_bye)
		VALUES (:id, :tournament_id, :round_index, :bracket_side, :round_number, :match_order,
			:slot_1_kind, :slot_1_team_id, :slot_1_source_id, :slot_1_outcome,
			:slot_2_kind, :slot_2_team_id, :slot_2_source_id, :slot_2_outcome,
			:score_1, :score_2, :winner_id, :state, :winner_next_match_id, :winner_next_slot, :loser_next_match_id, :loser_next_slot, :is_bye)`
)

// SaveTournament writes a whole snapshot in one transaction. Snapshots older
// than the stored version are ignored.
func (s *TournamentStore) SaveTournament(ctx context.Context, t *bracket.Tournament) error {
	row, err := toTournamentRow(t)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.NamedExecContext(ctx, upsertTournamentQuery, row)
	if err != nil {
		return fmt.Errorf("failed to save tournament %s: %w", t.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// A newer version is already stored
		return nil
	}

	for _, table := range []string{"matches", "rounds", "teams"} {
		q := s.db.Rebind(fmt.Sprintf("DELETE FROM %s WHERE tournament_id = ?", table))
		if _, err := tx.ExecContext(ctx, q, t.ID); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	teams := make([]teamRow, 0, len(t.Teams))
	for i, team := range t.Teams {
		teams = append(teams, toTeamRow(t.ID, i, team))
	}
	if err := insertAll(ctx, tx, insertTeamQuery, teams); err != nil {
		return fmt.Errorf("failed to save teams: %w", err)
	}

	rounds := make([]roundRow, 0, len(t.Rounds))
	for _, r := range t.Rounds {
		rr, err := toRoundRow(t.ID, r)
		if err != nil {
			return err
		}
		rounds = append(rounds, rr)
	}
	if err := insertAll(ctx, tx, insertRoundQuery, rounds); err != nil {
		return fmt.Errorf("failed to save rounds: %w", err)
	}

	matches := make([]matchRow, 0, len(t.Matches))
	for _, m := range t.MatchesInOrder() {
		matches = append(matches, toMatchRow(m))
	}
	if err := insertAll(ctx, tx, insertMatchQuery, matches); err != nil {
		return fmt.Errorf("failed to save matches: %w", err)
	}

	return tx.Commit()
}

// Batches stay under the sqlite bind variable limit
const insertBatch = 40

func insertAll[T any](ctx context.Context, tx *sqlx.Tx, query string, rows []T) error {
	for start := 0; start < len(rows); start += insertBatch {
		end := min(start+insertBatch, len(rows))
		if _, err := tx.NamedExecContext(ctx, query, rows[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *TournamentStore) GetTournament(ctx context.Context, id uuid.UUID) (*bracket.Tournament, error) {
	var row tournamentRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind("SELECT * FROM tournaments WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", bracket.ErrTournamentNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return s.load(ctx, row)
}

// LoadAll returns every stored tournament, newest first.
func (s *TournamentStore) LoadAll(ctx context.Context) ([]*bracket.Tournament, error) {
	var rows []tournamentRow
	if err := s.db.SelectContext(ctx, &rows, "SELECT * FROM tournaments ORDER BY created_at DESC"); err != nil {
		return nil, err
	}

	out := make([]*bracket.Tournament, 0, len(rows))
	for _, row := range rows {
		t, err := s.load(ctx, row)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *TournamentStore) DeleteTournament(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind("DELETE FROM tournaments WHERE id = ?"), id)
	return err
}

func (s *TournamentStore) load(ctx context.Context, row tournamentRow) (*bracket.Tournament, error) {
	t, err := fromTournamentRow(row)
	if err != nil {
		return nil, err
	}

	var teams []teamRow
	if err := s.db.SelectContext(ctx, &teams, s.db.Rebind("SELECT * FROM teams WHERE tournament_id = ? ORDER BY position ASC"), row.ID); err != nil {
		return nil, err
	}
	for _, tr := range teams {
		t.Teams = append(t.Teams, fromTeamRow(tr))
	}

	var rounds []roundRow
	if err := s.db.SelectContext(ctx, &rounds, s.db.Rebind("SELECT * FROM rounds WHERE tournament_id = ? ORDER BY round_index ASC"), row.ID); err != nil {
		return nil, err
	}
	byIndex := make(map[int]*bracket.Round, len(rounds))
	for _, rr := range rounds {
		r, err := fromRoundRow(rr)
		if err != nil {
			return nil, err
		}
		t.Rounds = append(t.Rounds, r)
		byIndex[r.Index] = r
	}

	var matches []matchRow
	if err := s.db.SelectContext(ctx, &matches, s.db.Rebind("SELECT * FROM matches WHERE tournament_id = ? ORDER BY round_index ASC, match_order ASC"), row.ID); err != nil {
		return nil, err
	}
	for _, mr := range matches {
		m := fromMatchRow(mr)
		r, ok := byIndex[m.RoundIndex]
		if !ok {
			return nil, fmt.Errorf("match %s belongs to missing round %d", m.ID, m.RoundIndex)
		}
		r.MatchIDs = append(r.MatchIDs, m.ID)
		t.Matches[m.ID] = m
	}
	return t, nil
}

func toTournamentRow(t *bracket.Tournament) (tournamentRow, error) {
	options, err := json.Marshal(t.Options)
	if err != nil {
		return tournamentRow{}, err
	}
	display, err := json.Marshal(t.Display)
	if err != nil {
		return tournamentRow{}, err
	}
	return tournamentRow{
		ID:             t.ID,
		Name:           t.Name,
		Format:         string(t.Format),
		Options:        string(options),
		Status:         string(t.Status),
		Phase:          string(t.Phase),
		CurrentMatchID: t.CurrentMatchID,
		ChampionID:     t.ChampionID,
		Display:        string(display),
		TimerDefault:   int(t.TimerDefault / time.Second),
		Version:        int64(t.Version),
		CreatedAt:      t.CreatedAt.UTC(),
		UpdatedAt:      time.Now().UTC(),
	}, nil
}

func fromTournamentRow(row tournamentRow) (*bracket.Tournament, error) {
	t := &bracket.Tournament{
		ID:             row.ID,
		Name:           row.Name,
		Format:         bracket.Format(row.Format),
		Status:         bracket.TournamentStatus(row.Status),
		Phase:          bracket.Phase(row.Phase),
		CurrentMatchID: row.CurrentMatchID,
		ChampionID:     row.ChampionID,
		TimerDefault:   time.Duration(row.TimerDefault) * time.Second,
		Version:        uint64(row.Version),
		CreatedAt:      row.CreatedAt,
		Matches:        make(map[uuid.UUID]*bracket.Match),
	}
	if err := json.Unmarshal([]byte(row.Options), &t.Options); err != nil {
		return nil, fmt.Errorf("tournament %s options: %w", row.ID, err)
	}
	if err := json.Unmarshal([]byte(row.Display), &t.Display); err != nil {
		return nil, fmt.Errorf("tournament %s display: %w", row.ID, err)
	}
	t.Timer = timer.Stopped(t.TimerDefault)
	return t, nil
}

func toTeamRow(tournamentID uuid.UUID, position int, team bracket.Team) teamRow {
	row := teamRow{ID: team.ID, TournamentID: tournamentID, Position: position, Name: team.Name, Seed: team.Seed}
	if team.Roster != nil {
		row.Player1 = sql.NullString{String: team.Roster.Player1, Valid: true}
		row.Player2 = sql.NullString{String: team.Roster.Player2, Valid: true}
	}
	return row
}

func fromTeamRow(row teamRow) bracket.Team {
	team := bracket.Team{ID: row.ID, Name: row.Name, Seed: row.Seed}
	if row.Player1.Valid && row.Player2.Valid {
		team.Roster = &bracket.Roster{Player1: row.Player1.String, Player2: row.Player2.String}
	}
	return team
}

func toRoundRow(tournamentID uuid.UUID, r *bracket.Round) (roundRow, error) {
	repeats := r.RepeatPairings
	if repeats == nil {
		repeats = [][2]uuid.UUID{}
	}
	data, err := json.Marshal(repeats)
	if err != nil {
		return roundRow{}, err
	}
	return roundRow{TournamentID: tournamentID, Index: r.Index, Side: string(r.Side), Number: r.Number, RepeatPairings: string(data)}, nil
}

func fromRoundRow(row roundRow) (*bracket.Round, error) {
	r := &bracket.Round{Index: row.Index, Side: bracket.BracketSide(row.Side), Number: row.Number}
	if err := json.Unmarshal([]byte(row.RepeatPairings), &r.RepeatPairings); err != nil {
		return nil, fmt.Errorf("round %d repeats: %w", row.Index, err)
	}
	if len(r.RepeatPairings) == 0 {
		r.RepeatPairings = nil
	}
	return r, nil
}

func toMatchRow(m *bracket.Match) matchRow {
	s1, s2 := m.Slots[0], m.Slots[1]
	return matchRow{
		ID:                m.ID,
		TournamentID:      m.TournamentID,
		RoundIndex:        m.RoundIndex,
		BracketSide:       string(m.BracketSide),
		RoundNumber:       m.RoundNumber,
		MatchOrder:        m.MatchOrder,
		Slot1Kind:         string(s1.Kind),
		Slot1TeamID:       s1.TeamID,
		Slot1SourceID:     s1.MatchID,
		Slot1Outcome:      string(s1.Outcome),
		Slot2Kind:         string(s2.Kind),
		Slot2TeamID:       s2.TeamID,
		Slot2SourceID:     s2.MatchID,
		Slot2Outcome:      string(s2.Outcome),
		Score1:            m.Score1,
		Score2:            m.Score2,
		WinnerID:          m.WinnerID,
		State:             string(m.State),
		WinnerNextMatchID: m.WinnerNextMatchID,
		WinnerNextSlot:    m.WinnerNextSlot,
		LoserNextMatchID:  m.LoserNextMatchID,
		LoserNextSlot:     m.LoserNextSlot,
		IsBye:             m.IsBye,
	}
}

func fromMatchRow(row matchRow) *bracket.Match {
	return &bracket.Match{
		ID:           row.ID,
		TournamentID: row.TournamentID,
		RoundIndex:   row.RoundIndex,
		BracketSide:  bracket.BracketSide(row.BracketSide),
		RoundNumber:  row.RoundNumber,
		MatchOrder:   row.MatchOrder,
		Slots: [2]bracket.Slot{
			{Kind: bracket.SlotKind(row.Slot1Kind), TeamID: row.Slot1TeamID, MatchID: row.Slot1SourceID, Outcome: bracket.Outcome(row.Slot1Outcome)},
			{Kind: bracket.SlotKind(row.Slot2Kind), TeamID: row.Slot2TeamID, MatchID: row.Slot2SourceID, Outcome: bracket.Outcome(row.Slot2Outcome)},
		},
		Score1:            row.Score1,
		Score2:            row.Score2,
		WinnerID:          row.WinnerID,
		State:             bracket.MatchState(row.State),
		WinnerNextMatchID: row.WinnerNextMatchID,
		WinnerNextSlot:    row.WinnerNextSlot,
		LoserNextMatchID:  row.LoserNextMatchID,
		LoserNextSlot:     row.LoserNextSlot,
		IsBye:             row.IsBye,
	}
}
