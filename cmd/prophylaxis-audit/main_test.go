package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRules = `[
  {
    "rule_id": "CG-01",
    "section": "Cirurgia Geral",
    "procedure": "Colecistectomia videolaparoscópica",
    "is_prophylaxis_required": true,
    "primary_recommendation": {"drugs": [{"name": "CEFAZOLINA", "dose": "2g"}]},
    "allergy_recommendation": {"drugs": [{"name": "CLINDAMICINA", "dose": "900mg"}]}
  },
  {
    "rule_id": "CG-02",
    "section": "Cirurgia Geral",
    "procedure": "Herniorrafia inguinal",
    "is_prophylaxis_required": false,
    "primary_recommendation": {"drugs": []},
    "allergy_recommendation": {"drugs": []}
  }
]`

const testSurgeries = `Dt Cirurgia;Cirurgia;Especialidade;Hr Incisão;Administração de Antibiotico;Antibiótico;Hr Antibiótico
15/03/2026;Colecistectomia videolaparoscópica;Cirurgia Geral;10:00;SIM;KEFAZOL 2G;09:15
15/03/2026;Herniorrafia inguinal;Cirurgia Geral;11:00;NAO;;
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestAuditCommand(t *testing.T) {
	dir := t.TempDir()
	rulesPath := writeFile(t, dir, "rules.json", testRules)
	surgeries := writeFile(t, dir, "cirurgias.csv", testSurgeries)
	outDir := filepath.Join(dir, "out")
	textfile := filepath.Join(dir, "audit.prom")

	out, err := run(t, "audit",
		"--rules", rulesPath,
		"--surgeries", surgeries,
		"--delimiter", ";",
		"--output", outDir,
		"--metrics-textfile", textfile,
	)
	require.NoError(t, err)
	assert.Contains(t, out, "2 records audited")
	assert.Contains(t, out, "CONFORME 1 | ALERTA 0 | NAO_CONFORME 0 | INDETERMINADO 1")

	for _, name := range []string{"auditoria_resultado.json", "auditoria_resultado.csv", "auditoria_resumo.txt"} {
		_, err := os.Stat(filepath.Join(outDir, name))
		assert.NoError(t, err, name)
	}

	metrics, err := os.ReadFile(textfile)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), "prophylaxis_audit_batches_total 1")
}

func TestAuditCommand_RequiresSurgeries(t *testing.T) {
	rulesPath := writeFile(t, t.TempDir(), "rules.json", testRules)

	_, err := run(t, "audit", "--rules", rulesPath)
	assert.Error(t, err)
}

func TestAuditCommand_MissingRules(t *testing.T) {
	dir := t.TempDir()
	surgeries := writeFile(t, dir, "cirurgias.csv", testSurgeries)

	_, err := run(t, "audit", "--rules", filepath.Join(dir, "missing.json"), "--surgeries", surgeries)
	assert.Error(t, err)
}

func TestMatchCommand(t *testing.T) {
	rulesPath := writeFile(t, t.TempDir(), "rules.json", testRules)

	out, err := run(t, "match", "--rules", rulesPath, "COLECISTECTOMIA", "VIDEOLAPAROSCOPICA")
	require.NoError(t, err)
	assert.Contains(t, out, "CG-01")
	assert.Contains(t, out, "exact")
	assert.Contains(t, out, "RULE")

	out, err = run(t, "match", "--rules", rulesPath, "Transplante cardiaco")
	require.NoError(t, err)
	assert.Contains(t, out, "no match")
}

func TestRulesImportAndStats(t *testing.T) {
	dir := t.TempDir()
	rulesPath := writeFile(t, dir, "rules.json", testRules)
	dbPath := filepath.Join(dir, "snapshot", "rules.db")

	out, err := run(t, "rules", "import", "--from", rulesPath, "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 2 rules")

	out, err = run(t, "rules", "stats", "--rules", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Rules: 2")
	assert.Contains(t, out, "Prophylaxis required:     1")
	assert.Contains(t, out, "Cirurgia Geral")
}

func TestValidateCommand(t *testing.T) {
	rulesPath := writeFile(t, t.TempDir(), "rules.json", testRules)

	out, err := run(t, "validate", "--rules", rulesPath)
	require.NoError(t, err)
	assert.Contains(t, out, "(2 rules)")
	assert.Contains(t, out, "Configuration OK")

	dup := `[{"rule_id": "X-1", "section": "A", "procedure": "Apendicectomia", "is_prophylaxis_required": false,
  "primary_recommendation": {"drugs": []}, "allergy_recommendation": {"drugs": []}},
 {"rule_id": "X-1", "section": "A", "procedure": "Apendicectomia aberta", "is_prophylaxis_required": false,
  "primary_recommendation": {"drugs": []}, "allergy_recommendation": {"drugs": []}}]`
	_, err = run(t, "validate", "--rules", writeFile(t, t.TempDir(), "rules.json", dup))
	assert.Error(t, err)

	typo := filepath.Join(t.TempDir(), "typo", "rules.db")
	_, err = run(t, "validate", "--rules", typo)
	assert.Error(t, err)
	assert.NoFileExists(t, typo)
}
