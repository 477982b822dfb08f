package dashboard

// indexHTML is the whole monitoring UI. Self-contained on purpose: the
// dashboard pod ships no static assets and works without internet.
const indexHTML = `<!DOCTYPE html>
<html lang="es">
<head>
<meta charset="utf-8">
<title>COLCAP News Pipeline</title>
<style>
  body { font-family: -apple-system, "Segoe UI", sans-serif; margin: 0; background: #0f1419; color: #e6e6e6; }
  header { padding: 14px 24px; background: #1a2230; border-bottom: 2px solid #2c3e5d; }
  header h1 { margin: 0; font-size: 20px; }
  header span.status { margin-left: 12px; font-size: 13px; padding: 2px 10px; border-radius: 10px; }
  .running { background: #1d4d2b; color: #7ee2a0; }
  .disconnected { background: #55222a; color: #ff98a4; }
  main { padding: 18px 24px; }
  .cards { display: flex; flex-wrap: wrap; gap: 12px; margin-bottom: 20px; }
  .card { background: #1a2230; border-radius: 8px; padding: 12px 18px; min-width: 130px; }
  .card .num { font-size: 26px; font-weight: 600; }
  .card .label { font-size: 12px; color: #8aa0bf; text-transform: uppercase; }
  section { margin-bottom: 24px; }
  h2 { font-size: 15px; color: #8aa0bf; border-bottom: 1px solid #2c3e5d; padding-bottom: 6px; }
  table { width: 100%; border-collapse: collapse; font-size: 13px; }
  th { text-align: left; color: #8aa0bf; padding: 6px 8px; }
  td { padding: 6px 8px; border-top: 1px solid #232e44; }
  td.pos { color: #7ee2a0; } td.neg { color: #ff98a4; } td.neu { color: #c9c9c9; }
  #chart { width: 100%; height: 160px; background: #1a2230; border-radius: 8px; }
  #logs { background: #121821; border-radius: 8px; padding: 10px; font-family: monospace; font-size: 12px; max-height: 220px; overflow-y: auto; }
  #logs .warn { color: #ffd479; } #logs .error { color: #ff98a4; }
</style>
</head>
<body>
<header>
  <h1>COLCAP News Pipeline <span id="status" class="status running">conectando…</span></h1>
</header>
<main>
  <div class="cards">
    <div class="card"><div class="num" id="processed">0</div><div class="label">Procesadas</div></div>
    <div class="card"><div class="num" id="queue">0</div><div class="label">En cola</div></div>
    <div class="card"><div class="num" id="workers">0</div><div class="label">Workers</div></div>
    <div class="card"><div class="num" id="rate">0.00</div><div class="label">Noticias/min</div></div>
    <div class="card"><div class="num" id="errors">0</div><div class="label">Errores</div></div>
    <div class="card"><div class="num" id="skipped">0</div><div class="label">Omitidas</div></div>
    <div class="card"><div class="num" id="urls">0</div><div class="label">URLs descubiertas</div></div>
  </div>

  <section>
    <h2>Rendimiento del clúster</h2>
    <canvas id="chart" width="1200" height="160"></canvas>
  </section>

  <section>
    <h2>Workers activos</h2>
    <table id="workersTable">
      <thead><tr><th>ID</th><th>Noticias/min</th><th>Procesadas</th><th>Errores</th><th>Última actividad</th></tr></thead>
      <tbody></tbody>
    </table>
  </section>

  <section>
    <h2>Escalabilidad</h2>
    <table id="scaleTable">
      <thead><tr><th>Workers</th><th>Noticias/min</th><th>Speedup</th><th>Eficiencia</th></tr></thead>
      <tbody></tbody>
    </table>
  </section>

  <section>
    <h2>Últimos resultados</h2>
    <table id="resultsTable">
      <thead><tr><th>Título</th><th>Dominio</th><th>Fecha</th><th>COLCAP</th><th>Sentimiento</th><th>Relevancia</th></tr></thead>
      <tbody></tbody>
    </table>
  </section>

  <section>
    <h2>Registro del productor</h2>
    <div id="logs"></div>
  </section>
</main>
<script>
const $ = (id) => document.getElementById(id);
const esc = (s) => String(s ?? "").replace(/[&<>"]/g, c => ({"&":"&amp;","<":"&lt;",">":"&gt;",'"':"&quot;"}[c]));

async function getJSON(path) {
  const r = await fetch(path);
  if (!r.ok) throw new Error(path + ": " + r.status);
  return r.json();
}

function setStatus(ok) {
  const el = $("status");
  el.textContent = ok ? "en línea" : "desconectado";
  el.className = "status " + (ok ? "running" : "disconnected");
}

function drawChart(points) {
  const canvas = $("chart"), ctx = canvas.getContext("2d");
  ctx.clearRect(0, 0, canvas.width, canvas.height);
  if (!points || points.length < 2) return;
  const data = points.slice().reverse();
  const maxRate = Math.max(...data.map(p => p.rate), 0.1);
  ctx.strokeStyle = "#4da3ff"; ctx.lineWidth = 2; ctx.beginPath();
  data.forEach((p, i) => {
    const x = (i / (data.length - 1)) * (canvas.width - 20) + 10;
    const y = canvas.height - 15 - (p.rate / maxRate) * (canvas.height - 30);
    i === 0 ? ctx.moveTo(x, y) : ctx.lineTo(x, y);
  });
  ctx.stroke();
}

async function refresh() {
  try {
    const m = await getJSON("/api/metrics");
    if (m.status === "disconnected") { setStatus(false); return; }
    setStatus(true);
    $("processed").textContent = m.total_processed;
    $("queue").textContent = m.queue_depth;
    $("workers").textContent = m.active_workers;
    $("rate").textContent = (m.fleet_rate || 0).toFixed(2);
    $("errors").textContent = m.total_errors;
    $("skipped").textContent = m.total_skipped;
    $("urls").textContent = m.urls_discovered;

    const [workers, results, scale, logs, points] = await Promise.all([
      getJSON("/api/workers"), getJSON("/api/results?limit=25"),
      getJSON("/api/scalability"), getJSON("/api/logs"),
      getJSON("/api/throughput?seconds=1800"),
    ]);

    $("workersTable").tBodies[0].innerHTML = (workers || []).map(w =>
      "<tr><td>" + esc(w.id) + "</td><td>" + w.rate.toFixed(2) + "</td><td>" + w.processed +
      "</td><td>" + w.errors + "</td><td>" + new Date(w.last_active * 1000).toLocaleTimeString() + "</td></tr>"
    ).join("");

    $("scaleTable").tBodies[0].innerHTML = (scale || []).map(s =>
      "<tr><td>" + s.workers + "</td><td>" + s.rate.toFixed(2) + "</td><td>" + s.speedup.toFixed(2) +
      "x</td><td>" + s.efficiency.toFixed(0) + "%</td></tr>"
    ).join("");

    $("resultsTable").tBodies[0].innerHTML = (results || []).map(r => {
      const cls = r.sentiment.classification === "positivo" ? "pos" :
                  r.sentiment.classification === "negativo" ? "neg" : "neu";
      return "<tr><td>" + esc(r.title).slice(0, 90) + "</td><td>" + esc(r.domain) +
        "</td><td>" + esc(r.fecha) + "</td><td>" + r.colcap_value.toFixed(2) +
        "</td><td class='" + cls + "'>" + esc(r.sentiment.classification) +
        "</td><td>" + r.economic_analysis.relevance_score + "</td></tr>";
    }).join("");

    $("logs").innerHTML = (logs || []).map(l =>
      "<div class='" + esc(l.level) + "'>[" + new Date(l.ts * 1000).toLocaleTimeString() + "] " + esc(l.msg) + "</div>"
    ).join("");

    drawChart(points);
  } catch (e) {
    setStatus(false);
  }
}

refresh();
setInterval(refresh, 5000);
</script>
</body>
</html>
`
