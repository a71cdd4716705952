package dashboard

import (
	"html/template"
	"net/http"

	"github.com/rs/zerolog/log"

	"msgclf/internal/common"
)

type profileView struct {
	Title       string
	Prompt      string
	Flagged     string
	Unflagged   string
	Examples    []string
	ColumnHint  string
	HeaderDflt  bool
	ExportName  string
	Extensions  string
	Strategies  []string
	Remediation string
	Ready       bool
	State       string
	Strategy    string
	Source      string
	Subs        []string
	LastError   string
}

var profileExamples = map[string][]string{
	common.ProfileSentiment: {
		"The food was amazing and the staff were lovely!",
		"Cold fries, rude waiter, never coming back.",
		"Best ramen I've had in years.",
	},
	common.ProfileSpam: {
		"WINNER!! You have been selected to receive a £900 prize reward! Call now to claim.",
		"Ok lar... Joking wif u oni...",
		"Free entry in 2 a wkly comp to win FA Cup final tkts. Text FA to 87121",
	},
}

func (s *Server) pageView() profileView {
	st := s.holder.Status()
	labels := s.adapter.Labels()

	v := profileView{
		Title:      "Food Review Sentiment",
		Prompt:     "Enter a review",
		Flagged:    labels.Flagged,
		Unflagged:  labels.Unflagged,
		Examples:   profileExamples[s.config.Profile],
		ColumnHint: "review",
		HeaderDflt: true,
		ExportName: s.config.ExportName,
		Extensions: joinExtensions(),
		Strategies: s.loader.Strategies(),
		Ready:      st.PredictionEnabled,
		State:      st.State,
		Strategy:   st.Strategy,
		Source:     st.Source,
		Subs:       st.Substitutions,
		LastError:  st.LastError,
	}
	if s.config.Profile == common.ProfileSpam {
		v.Title = "SMS Spam Detection"
		v.Prompt = "Enter a message"
		v.ColumnHint = "0"
		v.HeaderDflt = false
	}
	if !v.Ready {
		v.Remediation = s.remediation()
	}
	return v
}

// handleDashboard serves the main dashboard HTML page
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	s.session(w, r)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.Execute(w, s.pageView()); err != nil {
		log.Error().Err(err).Msg("Failed to render dashboard")
	}
}

var pageTemplate = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>{{.Title}}</title>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <style>
        body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; margin: 0; padding: 20px; background-color: #f5f5f5; }
        .container { max-width: 1100px; margin: 0 auto; }
        .header { background: linear-gradient(135deg, #667eea 0%, #764ba2 100%); color: white; padding: 20px; border-radius: 10px; margin-bottom: 20px; }
        .header h1 { margin: 0; font-size: 2.2em; text-align: center; }
        .grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(320px, 1fr)); gap: 20px; }
        .card { background: white; border-radius: 10px; padding: 20px; box-shadow: 0 4px 6px rgba(0,0,0,0.1); }
        .card h3 { margin-top: 0; color: #333; border-bottom: 2px solid #eee; padding-bottom: 10px; }
        .metric { display: flex; justify-content: space-between; padding: 8px 0; border-bottom: 1px solid #eee; }
        .metric:last-child { border-bottom: none; }
        .metric-label { font-weight: 500; color: #666; }
        .metric-value { font-weight: bold; color: #333; }
        .flagged { color: #dc3545; }
        .unflagged { color: #28a745; }
        .warning { background: #fff3cd; border: 1px solid #ffc107; padding: 15px; border-radius: 8px; margin-bottom: 20px; }
        textarea, input[type=text] { width: 100%; box-sizing: border-box; padding: 8px; }
        button { margin-top: 8px; padding: 8px 16px; }
        code { background: #eee; padding: 2px 4px; border-radius: 3px; }
        table { width: 100%; border-collapse: collapse; margin-top: 10px; }
        th, td { text-align: left; padding: 6px; border-bottom: 1px solid #eee; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header"><h1>{{.Title}}</h1></div>

        {{if not .Ready}}
        <div class="warning">
            <strong>Prediction is unavailable ({{.State}}).</strong>
            {{if .LastError}}<p>{{.LastError}}</p>{{end}}
            <p>{{.Remediation}}</p>
            <form id="upload-form">
                <input type="file" name="artifact">
                <button type="submit">Load artifact</button>
            </form>
            <p>Tried in order: {{range $i, $s := .Strategies}}{{if $i}}, {{end}}<code>{{$s}}</code>{{end}}</p>
            <div id="upload-result"></div>
        </div>
        {{end}}

        <div class="grid">
            <div class="card">
                <h3>Single message</h3>
                <form id="predict-form">
                    <textarea name="text" rows="4" placeholder="{{.Prompt}}"></textarea>
                    <button type="submit" {{if not .Ready}}disabled{{end}}>Classify</button>
                </form>
                <p>Examples:</p>
                <ul>{{range .Examples}}<li><a href="#" class="example">{{.}}</a></li>{{end}}</ul>
                <div id="predict-result"></div>
            </div>

            <div class="card">
                <h3>Bulk</h3>
                <form id="batch-form">
                    <input type="file" name="file">
                    <label>Column <input type="text" name="column" value="{{.ColumnHint}}"></label>
                    <label><input type="checkbox" name="header" value="true" {{if .HeaderDflt}}checked{{end}}> First row is a header</label>
                    <p>or paste one message per line:</p>
                    <textarea name="messages" rows="5"></textarea>
                    <button type="submit" {{if not .Ready}}disabled{{end}}>Classify all</button>
                </form>
                <div id="batch-result"></div>
            </div>

            <div class="card">
                <h3>Session</h3>
                <div class="metric"><span class="metric-label">Total</span><span class="metric-value" id="stat-total">0</span></div>
                <div class="metric"><span class="metric-label">{{.Flagged}}</span><span class="metric-value flagged" id="stat-flagged">0</span></div>
                <div class="metric"><span class="metric-label">{{.Unflagged}}</span><span class="metric-value unflagged" id="stat-unflagged">0</span></div>
                <div class="metric"><span class="metric-label">Failed</span><span class="metric-value" id="stat-failed">0</span></div>
            </div>

            {{if .Ready}}
            <div class="card">
                <h3>Model</h3>
                <div class="metric"><span class="metric-label">Loaded by</span><span class="metric-value">{{.Strategy}}</span></div>
                <div class="metric"><span class="metric-label">Source</span><span class="metric-value">{{.Source}}</span></div>
                {{range .Subs}}<div class="metric"><span class="metric-label">Placeholder</span><span class="metric-value">{{.}}</span></div>{{end}}
            </div>
            {{end}}
        </div>
    </div>

    <script>
        const ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws');
        ws.onmessage = function(event) {
            const s = JSON.parse(event.data);
            document.getElementById('stat-total').textContent = s.total;
            document.getElementById('stat-flagged').textContent = s.flagged;
            document.getElementById('stat-unflagged').textContent = s.unflagged;
            document.getElementById('stat-failed').textContent = s.failed;
        };

        document.querySelectorAll('.example').forEach(function(a) {
            a.onclick = function(e) {
                e.preventDefault();
                document.querySelector('#predict-form textarea').value = a.textContent;
            };
        });

        function show(id, html) { document.getElementById(id).innerHTML = html; }
        function esc(t) { const d = document.createElement('div'); d.textContent = t; return d.innerHTML; }

        document.getElementById('predict-form').onsubmit = async function(e) {
            e.preventDefault();
            const text = new FormData(e.target).get('text');
            const resp = await fetch('/api/predict', {method: 'POST', headers: {'Content-Type': 'application/json'}, body: JSON.stringify({text})});
            const body = await resp.json();
            if (!resp.ok) { show('predict-result', esc(body.error)); return; }
            const r = body.result;
            show('predict-result', r.error ? 'No prediction: ' + esc(r.error) : '<strong>' + esc(r.label) + '</strong>');
        };

        document.getElementById('batch-form').onsubmit = async function(e) {
            e.preventDefault();
            const form = new FormData(e.target);
            if (!form.get('header')) form.set('header', 'false');
            if (form.get('file') && form.get('file').size === 0) form.delete('file');
            const resp = await fetch('/api/batch', {method: 'POST', body: form});
            const body = await resp.json();
            if (!resp.ok) { show('batch-result', esc(body.error)); return; }
            const s = body.summary;
            let html = '<p>' + s.total + ' messages: ' + s.flagged + ' {{.Flagged}}, ' + s.unflagged + ' {{.Unflagged}}, ' + s.failed + ' failed</p>';
            if (body.export_url) html += '<a href="' + body.export_url + '">Download {{.ExportName}}</a>';
            html += '<table><tr><th>' + esc(body.column) + '</th><th>Label</th></tr>';
            body.results.slice(0, 50).forEach(function(r) { html += '<tr><td>' + esc(r.input) + '</td><td>' + esc(r.label || '') + '</td></tr>'; });
            show('batch-result', html + '</table>');
        };

        const upload = document.getElementById('upload-form');
        if (upload) upload.onsubmit = async function(e) {
            e.preventDefault();
            const resp = await fetch('/api/model', {method: 'POST', body: new FormData(e.target)});
            const body = await resp.json();
            if (resp.ok) { location.reload(); return; }
            let html = '<p>' + esc(body.error) + '</p>';
            (body.attempts || []).forEach(function(a) { html += '<div><code>' + esc(a.strategy) + '</code> ' + esc(a.error) + '</div>'; });
            show('upload-result', html);
        };
    </script>
</body>
</html>
`))
