/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: templates.go
Description: HTML template and template helpers for the IMG! fuzzing campaign report.
Renders campaign statistics, execution status counts, parser path hits, unique
crashes, triage buckets and memory usage as a static page.
*/

package reporting

import (
	"fmt"
	"html/template"
	"time"
)

// templateFuncs are the helpers available inside reportTemplate
var templateFuncs = template.FuncMap{
	"short": func(s string) string {
		if len(s) > 8 {
			return s[:8]
		}
		return s
	},
	"fmtTime": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.Format("2006-01-02 15:04:05")
	},
	"rate": func(v float64) string {
		return fmt.Sprintf("%.1f", v)
	},
	"percent": func(part, total int64) string {
		if total == 0 {
			return "0.0%"
		}
		return fmt.Sprintf("%.1f%%", float64(part)*100/float64(total))
	},
	"mib": func(b uint64) string {
		return fmt.Sprintf("%.1f MiB", float64(b)/(1<<20))
	},
}

// reportTemplate is the HTML template for a campaign report
const reportTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <style>
        * {
            margin: 0;
            padding: 0;
            box-sizing: border-box;
        }

        body {
            font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif;
            background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
            min-height: 100vh;
            color: #333;
        }

        .container {
            max-width: 1400px;
            margin: 0 auto;
            padding: 20px;
        }

        .header, .section {
            background: rgba(255, 255, 255, 0.95);
            border-radius: 20px;
            padding: 30px;
            margin-bottom: 30px;
            box-shadow: 0 8px 32px rgba(0, 0, 0, 0.1);
        }

        .header {
            text-align: center;
        }

        .header h1 {
            color: #4a5568;
            font-size: 2.5rem;
            margin-bottom: 10px;
        }

        .header p, .label {
            color: #718096;
        }

        .stats-grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(200px, 1fr));
            gap: 20px;
            margin-bottom: 30px;
        }

        .stat-card {
            background: rgba(255, 255, 255, 0.95);
            border-radius: 15px;
            padding: 25px;
            box-shadow: 0 8px 32px rgba(0, 0, 0, 0.1);
        }

        .stat-card .value {
            font-size: 2.2rem;
            font-weight: 700;
            color: #2d3748;
        }

        .label {
            font-size: 0.9rem;
            text-transform: uppercase;
            letter-spacing: 0.5px;
        }

        h2 {
            color: #4a5568;
            margin-bottom: 20px;
        }

        table {
            width: 100%;
            border-collapse: collapse;
        }

        th, td {
            text-align: left;
            padding: 10px;
            border-bottom: 1px solid #e2e8f0;
        }

        code {
            font-family: 'Fira Code', monospace;
            font-size: 0.85rem;
        }

        .severity-CRITICAL { color: #c53030; font-weight: 700; }
        .severity-HIGH { color: #dd6b20; font-weight: 700; }
        .severity-MEDIUM { color: #d69e2e; }
        .severity-LOW { color: #38a169; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>{{.Title}}</h1>
            <p>Session <code>{{.SessionID}}</code> &middot; target <code>{{.Target}}</code> &middot; executor <code>{{.Executor}}</code></p>
            <p>Started {{fmtTime .Stats.StartTime}} &middot; generated {{fmtTime .GeneratedAt}}</p>
        </div>

        <div class="stats-grid">
            <div class="stat-card"><div class="value">{{.Stats.Executions}}</div><div class="label">Executions</div></div>
            <div class="stat-card"><div class="value">{{rate .Stats.ExecutionsPerSecond}}</div><div class="label">Exec / sec</div></div>
            <div class="stat-card"><div class="value">{{.Stats.Paths}}</div><div class="label">Parser paths</div></div>
            <div class="stat-card"><div class="value">{{.Stats.UniqueCrashes}}</div><div class="label">Unique crashes</div></div>
            <div class="stat-card"><div class="value">{{.Stats.Crashes}}</div><div class="label">Total crashes</div></div>
            <div class="stat-card"><div class="value">{{.Stats.Timeouts}}</div><div class="label">Timeouts</div></div>
            <div class="stat-card"><div class="value">{{.Stats.CorpusSize}}</div><div class="label">Corpus size</div></div>
            {{with .QueueStats}}<div class="stat-card"><div class="value">{{index . "insertions"}}</div><div class="label">Scheduled inputs</div></div>{{end}}
            {{with .PeakMemory}}<div class="stat-card"><div class="value">{{mib .HeapAlloc}}</div><div class="label">Peak heap</div></div>{{end}}
        </div>
        {{if .MemoryAlerts}}
        <div class="section">
            <h2>Memory Alerts</h2>
            <table>
                <tr><th>Time</th><th>Heap</th><th>Message</th></tr>
                {{range .MemoryAlerts}}<tr><td>{{fmtTime .Timestamp}}</td><td>{{mib .Current}}</td><td>{{.Message}}</td></tr>{{end}}
            </table>
        </div>
        {{end}}

        <div class="section">
            <h2>Execution Status</h2>
            <table>
                <tr><th>Status</th><th>Count</th><th>Share</th></tr>
                {{range $status, $count := .StatusCounts}}
                <tr><td>{{$status}}</td><td>{{$count}}</td><td>{{percent $count $.Stats.Executions}}</td></tr>
                {{else}}
                <tr><td colspan="3">No executions recorded</td></tr>
                {{end}}
            </table>
        </div>

        <div class="section">
            <h2>Parser Paths</h2>
            <table>
                <tr><th>Path</th><th>Hits</th></tr>
                {{range .Paths}}
                <tr><td><code>{{.Path}}</code></td><td>{{.Count}}</td></tr>
                {{else}}
                <tr><td colspan="2">No parser paths recorded</td></tr>
                {{end}}
            </table>
        </div>

        <div class="section">
            <h2>Triage Buckets</h2>
            <table>
                <tr><th>Cause</th><th>Type</th><th>Severity</th><th>Count</th></tr>
                {{range .Buckets}}
                <tr>
                    <td><code>{{.Cause}}</code></td>
                    <td>{{.CrashType}}</td>
                    <td class="severity-{{.Severity}}">{{.Severity}}</td>
                    <td>{{.Count}}</td>
                </tr>
                {{else}}
                <tr><td colspan="4">No crashes found</td></tr>
                {{end}}
            </table>
        </div>

        <div class="section">
            <h2>Unique Crashes</h2>
            <table>
                <tr><th>Hash</th><th>Type</th><th>Message</th><th>Hits</th><th>First seen</th><th>Input</th></tr>
                {{range .Crashes}}
                <tr>
                    <td><code title="{{.Hash}}">{{short .Hash}}</code></td>
                    <td>{{.Type}}</td>
                    <td><code>{{.Message}}</code></td>
                    <td>{{.Count}}</td>
                    <td>{{fmtTime .FirstSeen}}</td>
                    <td><code>{{.File}}</code></td>
                </tr>
                {{else}}
                <tr><td colspan="6">No crashes found</td></tr>
                {{end}}
            </table>
        </div>
    </div>
</body>
</html>
`
