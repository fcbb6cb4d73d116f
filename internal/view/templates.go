package view

const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Market-State</title>
    <style>
        * { box-sizing: border-box; }
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif; margin: 0; padding: 24px; background: #f5f6f8; color: #212529; }
        .section-title, h1 { text-align: center; font-weight: 500; margin: 24px 0 16px; }
        .dbc-row { display: flex; flex-wrap: wrap; gap: 16px; margin-bottom: 16px; }
        .dbc-row > .col { flex: 1 1 0; min-width: 200px; }
        .card { background: #fff; border: 1px solid #dee2e6; border-radius: 6px; padding: 16px; height: 100%; }
        .card-title { font-size: 14px; color: #6c757d; text-transform: uppercase; letter-spacing: .5px; }
        .card-value { font-size: 24px; font-weight: 600; margin: 8px 0; }
        .card-description { font-size: 12px; color: #6c757d; margin: 0; }
        table { width: 100%; border-collapse: collapse; font-size: 14px; font-weight: 400; }
        td, th { padding: 4px 6px; text-align: left; border-bottom: 1px solid #f1f3f5; }
        .auction-value, .balance-value { text-align: right; font-variant-numeric: tabular-nums; }
        .stale { font-size: 12px; font-weight: 400; color: #b02a37; background: #f8d7da; border-radius: 4px; padding: 2px 6px; margin-bottom: 6px; }
        .chart { margin: 0 0 12px; }
        .chart figcaption { font-size: 13px; color: #6c757d; }
        .chart-empty { font-size: 14px; font-weight: 400; color: #6c757d; padding: 24px 0; }
        .connection { position: fixed; top: 8px; right: 12px; font-size: 12px; padding: 2px 8px; border-radius: 10px; background: #e9ecef; }
        .connection.live { background: #d1e7dd; color: #0f5132; }
        .connection.down { background: #f8d7da; color: #842029; }
    </style>
</head>
<body>
    <span id="connection" class="connection">connecting</span>
    <h1 class="section-title">Market-State</h1>
    <div class="dbc-row">
        <div class="col"><div class="card">
            <div class="card-title">Next Step</div>
            <div id="step-time" class="card-value">{{template "step-time" .NextStep}}</div>
            <p class="card-description">Time in seconds the server will need to process the next step of the simulation</p>
        </div></div>
        <div class="col"><div class="card">
            <div class="card-title">Time</div>
            <div id="current-simulation-time" class="card-value">{{template "current-simulation-time" .SimTime}}</div>
            <p class="card-description">Time, which already has been processed (simulation time)</p>
        </div></div>
    </div>
    <div id="auctions">{{template "auctions" .Auctions}}</div>
    <h1>Ranking</h1>
    <div class="dbc-row">
        <div class="col"><div class="card">
            <div class="card-title">Accounts</div>
            <div id="balances" class="card-value">{{template "balances" .Balances}}</div>
            <p class="card-description">Account owners and their account balance</p>
        </div></div>
    </div>
    <h1>System</h1>
    <div class="dbc-row">
        <div class="col"><div class="card">
            <div class="card-title">Demand fulfillment</div>
            <div id="demand" class="card-value">{{template "demand" .Demand}}</div>
            <p class="card-description">The demand of the system and whether it has been fulfilled</p>
        </div></div>
    </div>
    <script>
    (function () {
        var indicator = document.getElementById("connection");
        var scheme = location.protocol === "https:" ? "wss://" : "ws://";
        function connect() {
            var ws = new WebSocket(scheme + location.host + "/ws");
            ws.onopen = function () {
                indicator.textContent = "live";
                indicator.className = "connection live";
            };
            ws.onmessage = function (ev) {
                var msg = JSON.parse(ev.data);
                var el = document.getElementById(msg.region);
                if (el) {
                    el.innerHTML = msg.html;
                }
            };
            ws.onclose = function () {
                indicator.textContent = "reconnecting";
                indicator.className = "connection down";
                setTimeout(connect, 1000);
            };
        }
        connect();
    })();
    </script>
</body>
</html>
`

const regionTemplates = `
{{define "status"}}{{if .Err}}<div class="stale" title="{{.Err}}">{{.ErrKind}} error{{if .Loaded}}, showing data from {{.UpdatedAt.Format "15:04:05"}}{{else}}, no data yet{{end}}</div>{{end}}{{end}}

{{define "step-time"}}{{template "status" .Status}}{{.Value}}{{end}}

{{define "current-simulation-time"}}{{template "status" .Status}}{{.Value}}{{end}}

{{define "auctions"}}{{template "status" .Status}}<div class="dbc-row">
{{- range .DisplayOrder}}
    <div class="col"><div class="card" id="{{.ID}}">
        <div class="card-title">{{.Title}}</div>
        <div class="card-value">{{if .Placeholder}}{{.Placeholder}}{{else}}<table class="auction-table"><tbody>
            {{- range .Rows}}<tr><td>{{.Label}}</td><td class="auction-value">{{.Value}}</td></tr>{{end -}}
        </tbody></table>{{end}}</div>
        <p class="card-description">{{.Description}}</p>
    </div></div>
{{- end}}
</div>{{end}}

{{define "balances"}}{{template "status" .Status}}<table class="account-table">
<thead><tr><th>Name</th><th>Balance</th></tr></thead>
<tbody>
{{- range .Rows}}<tr><td>{{.Name}}</td><td class="balance-value">{{.Balance}}</td></tr>{{end -}}
</tbody>
</table>{{end}}

{{define "demand"}}{{template "status" .Status}}
{{- range demandCharts .}}<figure class="chart"><figcaption>{{.Name}}</figcaption>{{if .SVG}}{{.SVG}}{{else}}<div class="chart-empty">{{.Note}}</div>{{end}}</figure>{{end}}{{end}}
`
