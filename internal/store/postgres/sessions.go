package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"clinicq/ehr-service/internal/models"
	"clinicq/ehr-service/internal/store"
)

func (s *Store) Login(ctx context.Context, username, password string, expiresAt time.Time) (models.Session, error) {
	var professionalID, role, passwordHash string
	row := s.pool.QueryRow(ctx, `
		SELECT professional_id, role, password_hash
		FROM professionals
		WHERE username = $1 AND active = TRUE
	`, username)
	if err := row.Scan(&professionalID, &role, &passwordHash); err != nil {
		if isNoRows(err) {
			return models.Session{}, store.ErrLoginFailed
		}
		return models.Session{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)); err != nil {
		return models.Session{}, store.ErrLoginFailed
	}

	session := models.Session{
		SessionID:      uuid.NewString(),
		ProfessionalID: professionalID,
		Role:           role,
		ExpiresAt:      expiresAt,
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (session_id, professional_id, role, expires_at)
		VALUES ($1, $2, $3, $4)
	`, session.SessionID, session.ProfessionalID, session.Role, session.ExpiresAt)
	if err != nil {
		return models.Session{}, err
	}
	return session, nil
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (models.Session, error) {
	var session models.Session
	row := s.pool.QueryRow(ctx, `
		SELECT session_id, professional_id, role, expires_at
		FROM sessions
		WHERE session_id = $1 AND expires_at > NOW()
	`, sessionID)
	if err := row.Scan(&session.SessionID, &session.ProfessionalID, &session.Role, &session.ExpiresAt); err != nil {
		if isNoRows(err) {
			return models.Session{}, store.ErrSessionNotFound
		}
		return models.Session{}, err
	}
	return session, nil
}

func (s *Store) GetProfessional(ctx context.Context, professionalID string) (models.Professional, error) {
	var professional models.Professional
	var teamNull sql.NullString
	row := s.pool.QueryRow(ctx, `
		SELECT professional_id, name, role, team, active
		FROM professionals
		WHERE professional_id = $1
	`, professionalID)
	if err := row.Scan(&professional.ProfessionalID, &professional.Name, &professional.Role, &teamNull, &professional.Active); err != nil {
		if isNoRows(err) {
			return models.Professional{}, store.ErrRecordNotFound
		}
		return models.Professional{}, err
	}
	professional.Team = teamNull.String
	return professional, nil
}
