package register

import (
	"bytes"
	"context"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nhle/citas/internal/auth"
	"github.com/nhle/citas/internal/model"
	"github.com/nhle/citas/internal/store"
	"github.com/nhle/citas/tests/testutil"
)

func newModel(t *testing.T) (Model, *store.SQLiteStore) {
	t.Helper()
	s := testutil.NewTestStore(t)
	m := New(auth.NewService(s, auth.WithHashCost(bcrypt.MinCost)), 80, 24)
	m.Start()
	return m, s
}

func fill(fb *formBindings) {
	fb.firstName = "Ana"
	fb.lastName = "Pérez"
	fb.email = "ana@example.com"
	fb.phone = "0991234567"
	fb.cedula = "1712345678"
	fb.password = "Secreta1!"
	fb.confirm = "Secreta1!"
	fb.answers = [3]string{"Firulais", "García", "Quito"}
}

func TestRegistration_Mapping(t *testing.T) {
	fb := newBindings()
	fill(fb)
	fb.secondName = "María"

	r := fb.registration()
	assert.Equal(t, model.UserTypePatient, r.Type)
	assert.Equal(t, "María", r.SecondName)
	assert.Equal(t, model.SecurityQuestions[1], r.Questions[1].Question)
	assert.Equal(t, "García", r.Questions[1].Answer)
}

func TestSubmit_CreatesAccount(t *testing.T) {
	m, s := newModel(t)
	fill(m.fb)

	msg := m.submit()()
	m, cmd := m.Update(msg)
	require.NotNil(t, cmd)
	done, ok := cmd().(RegisteredMsg)
	require.True(t, ok)
	assert.Empty(t, done.PhotoSummary)

	u, err := s.GetUserByID(context.Background(), done.UserID)
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", u.Email)
	assert.Nil(t, u.Photo)
}

func TestSubmit_WithPhoto(t *testing.T) {
	m, s := newModel(t)
	fill(m.fb)

	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, imaging.New(600, 800, color.White), imaging.PNG))
	path := filepath.Join(t.TempDir(), "foto.png")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	m.fb.photoPath = path

	res := m.submit()().(resultMsg)
	require.NoError(t, res.err)
	assert.Contains(t, res.summary, "Resolución final: 300x400 px")

	u, err := s.GetUserByID(context.Background(), res.id)
	require.NoError(t, err)
	require.NotNil(t, u.Photo)
	assert.NotEmpty(t, *u.Photo)
}

func TestSubmit_ShowsFieldErrors(t *testing.T) {
	m, _ := newModel(t)
	fill(m.fb)
	m.fb.userType = string(model.UserTypeProvider)
	m.fb.email = "sin-arroba"
	m.fb.questions[2] = m.fb.questions[0]

	m, _ = m.Update(m.submit()())
	assert.Contains(t, m.errMsg, "email: Correo inválido")
	assert.Contains(t, m.errMsg, "preguntas: Las preguntas de seguridad deben ser diferentes")
	assert.Equal(t, "Ana", m.fb.firstName)
	assert.False(t, m.pending)
}

func TestSubmit_BadPhoto(t *testing.T) {
	m, _ := newModel(t)
	fill(m.fb)
	path := filepath.Join(t.TempDir(), "notas.txt")
	require.NoError(t, os.WriteFile(path, []byte("texto"), 0o600))
	m.fb.photoPath = path

	m, _ = m.Update(m.submit()())
	assert.Contains(t, m.errMsg, "formato de imagen no soportado")
}

func TestRequirementsText(t *testing.T) {
	text := requirementsText("abc")
	assert.Contains(t, text, "✗ Mínimo 8 caracteres")

	text = requirementsText("Secreta1!")
	assert.NotContains(t, text, "✗")
}
