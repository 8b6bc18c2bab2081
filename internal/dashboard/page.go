package dashboard

import "net/http"

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Write([]byte(dashboardHTML))
}

func (h *Handler) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Write([]byte(loginHTML))
}

const pageStyle = `
  :root {
    --bg: #0d1117;
    --surface: #161b22;
    --border: #30363d;
    --text: #e6edf3;
    --text-dim: #8b949e;
    --accent: #58a6ff;
    --green: #3fb950;
    --yellow: #d29922;
    --red: #f85149;
  }
  * { box-sizing: border-box; margin: 0; padding: 0; }
  body {
    font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Helvetica, Arial, sans-serif;
    background: var(--bg);
    color: var(--text);
    font-size: 14px;
    line-height: 1.5;
    padding: 16px;
  }
  a { color: var(--accent); }
  button, input, select {
    background: var(--surface);
    color: var(--text);
    border: 1px solid var(--border);
    border-radius: 6px;
    padding: 4px 10px;
    font-size: 13px;
  }
  button { cursor: pointer; }
`

const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Loop Dashboard</title>
<style>` + pageStyle + `
  header {
    display: flex;
    align-items: center;
    justify-content: space-between;
    margin-bottom: 16px;
    padding-bottom: 12px;
    border-bottom: 1px solid var(--border);
  }
  header h1 { font-size: 20px; font-weight: 600; }
  header h1 span { color: var(--accent); }
  .meta { font-size: 12px; color: var(--text-dim); }
  .tabs { display: flex; gap: 6px; margin-bottom: 12px; }
  .tabs button.active { border-color: var(--accent); color: var(--accent); }
  .panel { display: none; }
  .panel.active { display: block; }
  .grid { display: grid; grid-template-columns: 1fr 1fr; gap: 16px; }
  @media (max-width: 900px) { .grid { grid-template-columns: 1fr; } }
  .card {
    background: var(--surface);
    border: 1px solid var(--border);
    border-radius: 8px;
    overflow: hidden;
    margin-bottom: 16px;
  }
  .card-header {
    padding: 10px 14px;
    border-bottom: 1px solid var(--border);
    font-weight: 600;
    font-size: 13px;
    text-transform: uppercase;
    letter-spacing: 0.5px;
    color: var(--text-dim);
    display: flex;
    gap: 8px;
    align-items: center;
  }
  .card-header .count { margin-left: auto; font-size: 11px; }
  .card-body { padding: 12px 14px; max-height: 520px; overflow: auto; }
  .full-width { grid-column: 1 / -1; }
  .stats { display: flex; flex-wrap: wrap; gap: 12px; }
  .stat { background: var(--bg); border: 1px solid var(--border); border-radius: 8px; padding: 8px 14px; min-width: 120px; }
  .stat .label { font-size: 11px; color: var(--text-dim); text-transform: uppercase; }
  .stat .value { font-size: 18px; font-weight: 600; }
  .running { color: var(--green); }
  .stopped { color: var(--red); }
  .paused { color: var(--yellow); }
  table.list { width: 100%; border-collapse: collapse; }
  table.list td, table.list th { padding: 4px 8px; border-bottom: 1px solid var(--border); text-align: left; font-size: 13px; }
  table.list tr.clickable { cursor: pointer; }
  table.list tr.clickable:hover { background: var(--bg); }
  pre.log { white-space: pre-wrap; word-break: break-word; font-size: 12px; font-family: ui-monospace, Menlo, monospace; }
  .markdown h1, .markdown h2, .markdown h3 { margin: 12px 0 6px; }
  .markdown p, .markdown ul, .markdown table, .markdown pre { margin: 6px 0; }
  .markdown ul { padding-left: 20px; }
  .markdown code { background: var(--bg); padding: 1px 4px; border-radius: 4px; }
  .markdown pre { background: var(--bg); padding: 8px; border-radius: 6px; overflow-x: auto; }
  .markdown table { border-collapse: collapse; }
  .markdown th, .markdown td { border: 1px solid var(--border); padding: 4px 8px; }
  .empty { color: var(--text-dim); font-style: italic; }
  .crumbs a { cursor: pointer; }
  .hit { padding: 8px 0; border-bottom: 1px solid var(--border); }
  .hit strong { color: var(--yellow); }
  .error { color: var(--red); }
</style>
</head>
<body>
<header>
  <h1>Loop <span>Dashboard</span></h1>
  <div class="meta">
    <span id="updated">never</span> &middot;
    refresh
    <select id="interval" onchange="setRefresh()">
      <option value="5000" selected>5s</option>
      <option value="15000">15s</option>
      <option value="60000">60s</option>
      <option value="0">off</option>
    </select>
    <button onclick="refreshAll()">Refresh</button>
  </div>
</header>

<div class="tabs">
  <button data-tab="overview" class="active">Overview</button>
  <button data-tab="logs">Logs</button>
  <button data-tab="cycles">Cycles</button>
  <button data-tab="files">Files</button>
  <button data-tab="history">History</button>
</div>

<div id="overview" class="panel active">
  <div class="card"><div class="card-body"><div class="stats" id="stats"></div></div></div>
  <div class="grid">
    <div class="card">
      <div class="card-header">Consensus</div>
      <div class="card-body markdown" id="consensus"><div class="empty">loading…</div></div>
    </div>
    <div class="card">
      <div class="card-header">Activities <span class="count" id="activities-count"></span></div>
      <div class="card-body" id="activities"></div>
    </div>
    <div class="card full-width">
      <div class="card-header">Agents</div>
      <div class="card-body" id="agents"></div>
    </div>
  </div>
</div>

<div id="logs" class="panel">
  <div class="card">
    <div class="card-header">Log tail
      <select id="log-engine" onchange="loadLog()"><option value="">auto</option></select>
    </div>
    <div class="card-body"><pre class="log" id="log-tail"></pre></div>
  </div>
  <div class="card">
    <div class="card-header">Structured events <span class="count" id="events-count"></span></div>
    <div class="card-body" id="events"></div>
  </div>
</div>

<div id="cycles" class="panel">
  <div class="grid">
    <div class="card">
      <div class="card-header">Cycle logs <span class="count" id="cycles-count"></span></div>
      <div class="card-body" id="cycle-list"></div>
    </div>
    <div class="card">
      <div class="card-header" id="cycle-title">Cycle</div>
      <div class="card-body"><pre class="log" id="cycle-content"></pre></div>
    </div>
  </div>
</div>

<div id="files" class="panel">
  <div class="grid">
    <div class="card">
      <div class="card-header">Files
        <select id="browse-dir" onchange="browse(this.value)"></select>
      </div>
      <div class="card-body"><div class="crumbs" id="crumbs"></div><div id="file-list"></div></div>
    </div>
    <div class="card">
      <div class="card-header" id="file-title">Preview</div>
      <div class="card-body" id="file-preview"><div class="empty">Select a file</div></div>
    </div>
  </div>
</div>

<div id="history" class="panel">
  <div class="card">
    <div class="card-header">Search cycle history
      <input id="history-q" placeholder="search…" onkeydown="if(event.key==='Enter')searchHistory()">
      <button onclick="searchHistory()">Search</button>
    </div>
    <div class="card-body" id="history-results"><div class="empty">Enter a query</div></div>
  </div>
</div>

<script>
let timer = null;
const BROWSE_DIRS = ['docs', 'projects', 'logs'];

function esc(s) {
  return String(s == null ? '' : s)
    .replace(/&/g, '&amp;').replace(/</g, '&lt;').replace(/>/g, '&gt;')
    .replace(/"/g, '&quot;').replace(/'/g, '&#39;');
}

async function api(path, opts) {
  const res = await fetch(path, opts);
  if (res.status === 401) { window.location = '/login'; throw new Error('unauthorized'); }
  const data = await res.json();
  if (!res.ok) throw new Error(data.error || res.statusText);
  return data;
}

function setRefresh() {
  const ms = parseInt(document.getElementById('interval').value);
  if (timer) clearInterval(timer);
  if (ms > 0) timer = setInterval(loadStatus, ms);
}

function stat(label, value, cls) {
  return '<div class="stat"><div class="label">' + esc(label) + '</div><div class="value ' + (cls || '') + '">' + esc(value) + '</div></div>';
}

async function loadStatus() {
  try {
    const s = await api('/api/status');
    const loop = s.loop || {};
    let state = loop.state;
    if (loop.paused) state = 'paused';
    document.getElementById('stats').innerHTML =
      stat('Loop', state, state) +
      stat('Engine', s.engine.active) +
      stat('Cycles', loop.loopCount) +
      stat('Errors', loop.errorCount) +
      stat('Model', loop.model) +
      stat('Last run', loop.lastRun || '-') +
      stat('Failed cycles', s.logStats.errors);
    document.getElementById('consensus').innerHTML = s.consensusHtml || '<div class="empty">No consensus yet</div>';

    const acts = s.activities || [];
    document.getElementById('activities-count').textContent = acts.length;
    document.getElementById('activities').innerHTML = acts.length === 0 ? '<div class="empty">No activity</div>' :
      '<table class="list">' + acts.slice(0, 50).map(a =>
        '<tr><td>' + esc(a.ts) + '</td><td>' + esc(a.agent) + '</td><td>' + esc(a.action) + '</td><td>' + esc(a.detail || a.message || '') + '</td></tr>'
      ).join('') + '</table>';

    const agents = Object.entries(s.agentStats || {}).sort((a, b) => b[1].count - a[1].count);
    document.getElementById('agents').innerHTML = agents.length === 0 ? '<div class="empty">No agents</div>' :
      '<table class="list"><tr><th>Agent</th><th>Role</th><th>Actions</th><th>Last active</th></tr>' + agents.map(([name, st]) =>
        '<tr><td>' + esc(name) + '</td><td>' + esc(st.role) + '</td><td>' + esc(st.count) + '</td><td>' + esc(st.lastActive) + '</td></tr>'
      ).join('') + '</table>';

    const sel = document.getElementById('log-engine');
    if (sel.options.length === 1) {
      Object.keys(s.engine.available || {}).forEach(name => {
        const o = document.createElement('option');
        o.value = name; o.textContent = name;
        sel.appendChild(o);
      });
    }
    document.getElementById('updated').textContent = new Date().toLocaleTimeString();
  } catch (e) {
    document.getElementById('updated').innerHTML = '<span class="error">' + esc(e.message) + '</span>';
  }
}

async function loadLog() {
  const engine = document.getElementById('log-engine').value;
  const q = engine ? '&engine=' + encodeURIComponent(engine) : '';
  try {
    const tail = await api('/api/log?lines=300' + q);
    document.getElementById('log-tail').textContent = tail.logTail || '';
    const ev = await api('/api/logs/json?limit=200' + q);
    document.getElementById('events-count').textContent = ev.stats.total;
    document.getElementById('events').innerHTML = ev.logs.length === 0 ? '<div class="empty">No events</div>' :
      '<table class="list">' + ev.logs.map(l =>
        '<tr><td>' + esc(l.ts) + '</td><td>' + esc(l.event) + '</td><td>' + esc(l.status || '') + '</td><td>' + esc(l.message || '') + '</td></tr>'
      ).join('') + '</table>';
  } catch (e) {
    document.getElementById('log-tail').textContent = e.message;
  }
}

async function loadCycles() {
  try {
    const data = await api('/api/cycles');
    document.getElementById('cycles-count').textContent = data.total;
    document.getElementById('cycle-list').innerHTML = data.cycles.length === 0 ? '<div class="empty">No cycle logs</div>' :
      '<table class="list">' + data.cycles.map(c =>
        '<tr class="clickable" data-cycle="' + esc(c.filename) + '"><td>#' + esc(c.cycle) + '</td><td>' + esc(c.engine) + '</td><td>' + esc(c.mtime) + '</td><td>' + esc(c.size) + ' B</td></tr>'
      ).join('') + '</table>';
  } catch (e) {
    document.getElementById('cycle-list').innerHTML = '<div class="error">' + esc(e.message) + '</div>';
  }
}

async function openCycle(name) {
  document.getElementById('cycle-title').textContent = name;
  try {
    const data = await api('/api/cycle/' + encodeURIComponent(name));
    document.getElementById('cycle-content').textContent = data.content;
  } catch (e) {
    document.getElementById('cycle-content').textContent = e.message;
  }
}

async function browse(path) {
  try {
    const top = BROWSE_DIRS.includes(path);
    const data = await api(top ? '/api/files?dir=' + encodeURIComponent(path) : '/api/files/' + path.split('/').map(encodeURIComponent).join('/'));
    const parts = data.path.split('/');
    document.getElementById('crumbs').innerHTML = parts.map((p, i) =>
      '<a data-dir="' + esc(parts.slice(0, i + 1).join('/')) + '">' + esc(p) + '</a>'
    ).join(' / ');
    const rows = data.dirs.map(d => '<tr class="clickable" data-dir="' + esc(d.path) + '"><td>📁 ' + esc(d.name) + '</td><td></td></tr>')
      .concat(data.files.map(f => '<tr class="clickable" data-file="' + esc(f.path) + '"><td>' + esc(f.name) + '</td><td>' + esc(f.size) + ' B</td></tr>'));
    document.getElementById('file-list').innerHTML = rows.length === 0 ? '<div class="empty">Empty directory</div>' :
      '<table class="list">' + rows.join('') + '</table>';
  } catch (e) {
    document.getElementById('file-list').innerHTML = '<div class="error">' + esc(e.message) + '</div>';
  }
}

async function openFile(path) {
  const url = path.split('/').map(encodeURIComponent).join('/');
  document.getElementById('file-title').innerHTML = esc(path) + ' <a href="/api/download/' + esc(url) + '">download</a>';
  const el = document.getElementById('file-preview');
  try {
    const f = await api('/api/file/' + url);
    if (f.type === 'markdown') {
      el.className = 'card-body markdown';
      el.innerHTML = f.html;
    } else {
      el.className = 'card-body';
      let text = f.content;
      if (f.type === 'json') {
        try { text = JSON.stringify(JSON.parse(text), null, 2); } catch (_) {}
      }
      el.innerHTML = '<pre class="log">' + esc(text) + '</pre>';
    }
  } catch (e) {
    el.innerHTML = '<div class="error">' + esc(e.message) + '</div>';
  }
}

async function searchHistory() {
  const q = document.getElementById('history-q').value.trim();
  const el = document.getElementById('history-results');
  if (!q) return;
  try {
    const data = await api('/api/history/search?q=' + encodeURIComponent(q));
    el.innerHTML = data.results.length === 0 ? '<div class="empty">No matches</div>' :
      data.results.map(r =>
        '<div class="hit"><a data-cycle="' + esc(r.filename) + '">' + esc(r.filename) + '</a> <span class="meta">' + esc(r.engine) + ' &middot; ' + esc(r.mtime) + '</span><div>' + r.snippetHtml + '</div></div>'
      ).join('');
  } catch (e) {
    el.innerHTML = '<div class="error">' + esc(e.message) + '</div>';
  }
}

function showTab(name) {
  document.querySelectorAll('.tabs button').forEach(b => b.classList.toggle('active', b.dataset.tab === name));
  document.querySelectorAll('.panel').forEach(p => p.classList.toggle('active', p.id === name));
  if (name === 'logs') loadLog();
  if (name === 'cycles') loadCycles();
}

function refreshAll() {
  loadStatus();
  const active = document.querySelector('.panel.active').id;
  if (active === 'logs') loadLog();
  if (active === 'cycles') loadCycles();
}

document.addEventListener('click', e => {
  const tab = e.target.closest('[data-tab]');
  if (tab) { showTab(tab.dataset.tab); return; }
  const cycle = e.target.closest('[data-cycle]');
  if (cycle) { showTab('cycles'); openCycle(cycle.dataset.cycle); return; }
  const dir = e.target.closest('[data-dir]');
  if (dir) { browse(dir.dataset.dir); return; }
  const file = e.target.closest('[data-file]');
  if (file) { openFile(file.dataset.file); }
});

const dirSel = document.getElementById('browse-dir');
BROWSE_DIRS.forEach(d => {
  const o = document.createElement('option');
  o.value = d; o.textContent = d;
  dirSel.appendChild(o);
});

browse(BROWSE_DIRS[0]);
loadStatus();
setRefresh();
</script>
</body>
</html>`

const loginHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Loop Dashboard · Login</title>
<style>` + pageStyle + `
  body { display: flex; align-items: center; justify-content: center; min-height: 100vh; }
  form {
    background: var(--surface);
    border: 1px solid var(--border);
    border-radius: 8px;
    padding: 24px;
    width: 320px;
    display: flex;
    flex-direction: column;
    gap: 12px;
  }
  h1 { font-size: 18px; }
  .error { color: var(--red); font-size: 13px; min-height: 18px; }
</style>
</head>
<body>
<form id="login">
  <h1>Loop Dashboard</h1>
  <input type="password" id="token" placeholder="Dashboard token" autofocus>
  <button type="submit">Sign in</button>
  <div class="error" id="error"></div>
</form>
<script>
document.getElementById('login').addEventListener('submit', async e => {
  e.preventDefault();
  const token = document.getElementById('token').value;
  const res = await fetch('/api/auth/login', {
    method: 'POST',
    headers: {'Content-Type': 'application/json'},
    body: JSON.stringify({token: token}),
  });
  if (res.ok) {
    window.location = '/';
    return;
  }
  const data = await res.json().catch(() => ({}));
  document.getElementById('error').textContent = data.error || 'Login failed';
});
</script>
</body>
</html>`
