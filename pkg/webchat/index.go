package webchat

// indexHTML is the single-page chat shell. Kept inline so the binary is
// self-contained; no build step, no asset directory.
const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>calbot</title>
<style>
  body { font-family: system-ui, sans-serif; margin: 0; display: flex; height: 100vh; }
  #chat { flex: 2; display: flex; flex-direction: column; border-right: 1px solid #ddd; }
  #log { flex: 1; overflow-y: auto; padding: 1rem; }
  .msg { margin: 0.5rem 0; padding: 0.5rem 0.75rem; border-radius: 8px; max-width: 80%; white-space: pre-wrap; }
  .user { background: #d0e7ff; margin-left: auto; }
  .bot { background: #f0f0f0; }
  .err { background: #ffe0e0; color: #900; }
  #bar { display: flex; padding: 0.75rem; border-top: 1px solid #ddd; }
  #input { flex: 1; padding: 0.5rem; font-size: 1rem; }
  #side { flex: 1; overflow-y: auto; padding: 1rem; background: #fafafa; font-size: 0.85rem; }
  h3 { margin-top: 0; }
  button { margin-left: 0.5rem; padding: 0.5rem 1rem; }
  .booking { border-bottom: 1px solid #eee; padding: 0.4rem 0; }
  .lifecycle { color: #666; font-size: 0.75rem; }
</style>
</head>
<body>
<div id="chat">
  <div id="log"></div>
  <div id="bar">
    <input id="input" placeholder="Ask me to book, list, or move a meeting" autofocus>
    <button id="send">Send</button>
    <button id="reset">Reset</button>
  </div>
</div>
<div id="side">
  <h3>Bookings</h3>
  <div id="bookings">loading...</div>
  <h3>Diagnostics</h3>
  <pre id="diag">none</pre>
</div>
<script>
const log = document.getElementById('log');
const input = document.getElementById('input');
const ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws');

function addMsg(text, cls) {
  const div = document.createElement('div');
  div.className = 'msg ' + cls;
  div.textContent = text;
  log.appendChild(div);
  log.scrollTop = log.scrollHeight;
}

ws.onmessage = (ev) => {
  const msg = JSON.parse(ev.data);
  if (msg.type === 'reply') { addMsg(msg.text, 'bot'); refreshBookings(); }
  else if (msg.type === 'error') { addMsg(msg.error, 'err'); }
  else if (msg.type === 'reset') { log.innerHTML = ''; }
};

function send() {
  const text = input.value.trim();
  if (!text) return;
  addMsg(text, 'user');
  ws.send(JSON.stringify({type: 'chat', text}));
  input.value = '';
}

document.getElementById('send').onclick = send;
document.getElementById('reset').onclick = () => ws.send(JSON.stringify({type: 'reset'}));
input.addEventListener('keydown', (e) => { if (e.key === 'Enter') send(); });

async function refreshBookings() {
  try {
    const res = await fetch('/api/bookings');
    const data = await res.json();
    const el = document.getElementById('bookings');
    if (!data.success) { el.textContent = data.error || 'unavailable'; return; }
    if (data.count === 0) { el.textContent = 'no bookings'; return; }
    el.innerHTML = '';
    for (const b of data.bookings) {
      const div = document.createElement('div');
      div.className = 'booking';
      div.innerHTML = '<strong></strong><br><span></span> <span class="lifecycle"></span>';
      div.querySelector('strong').textContent = b.title || b.uid;
      div.querySelector('span').textContent = b.localTime || b.start;
      div.querySelector('.lifecycle').textContent = b.lifecycle || '';
      el.appendChild(div);
    }
  } catch (e) { /* panel is best-effort */ }

  try {
    const res = await fetch('/api/diagnostics');
    const data = await res.json();
    document.getElementById('diag').textContent =
      data.count === 0 ? 'none' : data.entries.map(e => e.kind + ': ' + e.detail).join('\n');
  } catch (e) { /* panel is best-effort */ }
}

refreshBookings();
</script>
</body>
</html>`
