// Embedded web dashboard HTML
package main

var webIndexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width,initial-scale=1">
<title>frpc panel</title>
<style>
*{margin:0;padding:0;box-sizing:border-box}
:root{
  --bg:#ffffff;--bg2:#f6f8fa;--bg3:#eef1f5;--border:#d1d9e0;
  --fg:#1f2328;--fg2:#656d76;--accent:#2563eb;--accent-light:#dbeafe;
  --green:#1a7f37;--green-bg:#dafbe1;--red:#cf222e;--red-bg:#ffebe9;
  --yellow:#9a6700;--yellow-bg:#fff8c5;
  --shadow:0 1px 3px rgba(0,0,0,.08);
}
[data-theme="dark"]{
  --bg:#0d1117;--bg2:#161b22;--bg3:#21262d;--border:#30363d;
  --fg:#e6edf3;--fg2:#8d96a0;--accent:#4493f8;--accent-light:#1f2a3d;
  --green:#3fb950;--green-bg:#12261e;--red:#f85149;--red-bg:#2d1618;
  --yellow:#d29922;--yellow-bg:#2b2111;
  --shadow:0 1px 3px rgba(0,0,0,.4);
}
body{font-family:'Segoe UI',system-ui,-apple-system,sans-serif;background:var(--bg);color:var(--fg);overflow:hidden;height:100vh}
.layout{display:flex;height:100vh}
.sidebar{width:230px;background:var(--bg2);border-right:1px solid var(--border);display:flex;flex-direction:column;flex-shrink:0}
.sidebar .logo{padding:20px 18px 16px;border-bottom:1px solid var(--border);display:flex;justify-content:space-between;align-items:flex-start}
.sidebar .logo h1{font-size:16px;font-weight:700;letter-spacing:-.3px}
.sidebar .logo span{color:var(--fg2);font-weight:400;font-size:11px;display:block;margin-top:2px}
.icon-btn{background:none;border:none;color:var(--fg2);cursor:pointer;font-size:15px;padding:2px 4px;border-radius:5px}
.icon-btn:hover{color:var(--fg);background:var(--bg3)}
.sidebar nav{flex:1;padding:6px 0;overflow-y:auto}
.sidebar nav button{
  display:flex;align-items:center;gap:9px;width:100%;padding:8px 18px;
  background:none;border:none;color:var(--fg2);cursor:pointer;font-size:13px;text-align:left;
  transition:all .12s;border-left:3px solid transparent;
}
.sidebar nav button:hover{background:var(--bg3);color:var(--fg)}
.sidebar nav button.active{color:var(--accent);background:var(--accent-light);border-left-color:var(--accent);font-weight:600}
.sidebar nav button .name{flex:1;overflow:hidden;text-overflow:ellipsis;white-space:nowrap}
.sidebar nav .add{color:var(--accent)}
.sidebar .status-bar{padding:12px 18px;border-top:1px solid var(--border);font-size:11px;color:var(--fg2);display:flex;flex-direction:column;gap:6px}
.sidebar .status-bar a{color:var(--fg2);cursor:pointer;text-decoration:none}
.sidebar .status-bar a:hover{color:var(--accent)}
.dot{display:inline-block;width:8px;height:8px;border-radius:50%;flex-shrink:0}
.dot.on{background:var(--green)}.dot.off{background:var(--border)}.dot.warn{background:var(--yellow)}
.main{flex:1;overflow-y:auto;padding:28px 32px}
.empty{color:var(--fg2);text-align:center;margin-top:120px;font-size:13px;line-height:2}
h2{font-size:17px;margin-bottom:4px;font-weight:600}
h3{font-size:14px;margin:24px 0 10px;font-weight:600;color:var(--fg2);display:flex;align-items:center;gap:10px}
h3 .btn{margin-left:auto}
.sub{color:var(--fg2);font-size:12px;margin-bottom:18px}
.grid{display:grid;grid-template-columns:repeat(auto-fill,minmax(160px,1fr));gap:12px;margin-bottom:20px}
.card{background:var(--bg2);border:1px solid var(--border);border-radius:8px;padding:14px;box-shadow:var(--shadow)}
.card .label{font-size:10px;color:var(--fg2);text-transform:uppercase;letter-spacing:.5px;margin-bottom:4px;font-weight:500}
.card .val{font-size:18px;font-weight:700;overflow:hidden;text-overflow:ellipsis;white-space:nowrap}
.card .val.g{color:var(--green)}.card .val.r{color:var(--red)}.card .val.b{color:var(--accent)}.card .val.y{color:var(--yellow)}
.actions{display:flex;gap:8px;flex-wrap:wrap;margin-bottom:8px}
.btn{padding:6px 16px;border-radius:7px;border:1px solid var(--border);background:var(--bg);color:var(--fg);cursor:pointer;font-size:12.5px;font-weight:500;box-shadow:var(--shadow);transition:all .12s}
.btn:hover{border-color:var(--accent);color:var(--accent)}
.btn.primary{background:var(--accent);color:#fff;border-color:var(--accent)}.btn.primary:hover{opacity:.88;color:#fff}
.btn.danger{border-color:var(--red);color:var(--red)}.btn.danger:hover{background:var(--red-bg)}
.btn.warn{border-color:var(--yellow);color:var(--yellow)}.btn.warn:hover{background:var(--yellow-bg)}
.btn.sm{padding:3px 10px;font-size:11.5px}
.btn:disabled{opacity:.35;pointer-events:none}
.log-box{background:var(--bg2);border:1px solid var(--border);border-radius:8px;padding:14px;font-family:'Cascadia Code','Fira Code',monospace;font-size:11.5px;line-height:1.7;height:300px;overflow-y:auto;white-space:pre-wrap;word-break:break-all;color:var(--fg2)}
.tbl{width:100%;border-collapse:collapse;font-size:12.5px;margin-bottom:8px}
.tbl th{text-align:left;padding:6px 10px;background:var(--bg3);border:1px solid var(--border);font-weight:600;font-size:11px;text-transform:uppercase;letter-spacing:.4px;color:var(--fg2)}
.tbl td{padding:6px 10px;border:1px solid var(--border)}
.tbl td.k{font-weight:500;color:var(--accent)}
.tbl td.act{width:1%;white-space:nowrap}
.tbl tr:hover{background:var(--bg2)}
.badge{display:inline-block;padding:2px 8px;border-radius:4px;font-size:10.5px;font-weight:600;text-transform:uppercase}
.badge.on{background:var(--green-bg);color:var(--green)}.badge.off{background:var(--red-bg);color:var(--red)}
.badge.tcp,.badge.udp{background:var(--accent-light);color:var(--accent)}
.badge.http,.badge.https{background:var(--yellow-bg);color:var(--yellow)}
.live{font-size:11px;color:var(--fg2);font-weight:400;display:flex;align-items:center;gap:5px;cursor:pointer}
.edit-overlay{display:none;position:fixed;top:0;left:0;right:0;bottom:0;background:rgba(0,0,0,.3);z-index:100;align-items:center;justify-content:center}
.edit-overlay.show{display:flex}
.edit-panel{background:var(--bg);border:1px solid var(--border);border-radius:12px;padding:24px;min-width:360px;max-width:560px;max-height:90vh;overflow-y:auto;box-shadow:0 12px 40px rgba(0,0,0,.15)}
.edit-panel h3{margin-top:0;margin-bottom:16px;font-size:15px;color:var(--fg)}
.field{margin-bottom:10px}
.field label{font-size:11px;color:var(--fg2);text-transform:uppercase;letter-spacing:.4px;display:block;margin-bottom:3px;font-weight:500}
.field input,.field select{width:100%;padding:7px 10px;background:var(--bg2);border:1px solid var(--border);border-radius:6px;color:var(--fg);font-size:13px;font-family:inherit}
.field input:focus,.field select:focus{outline:none;border-color:var(--accent)}
.field .hint{font-size:11px;color:var(--fg2);margin-top:3px}
.field.check label{display:flex;align-items:center;gap:8px;text-transform:none;font-size:13px;color:var(--fg)}
.field.check input{width:auto}
.row{display:flex;gap:10px}.row .field{flex:1}
.edit-actions{display:flex;gap:8px;margin-top:16px;justify-content:flex-end}
.conf-view{background:var(--bg2);border:1px solid var(--border);border-radius:8px;padding:14px;font-family:'Cascadia Code','Fira Code',monospace;font-size:12px;line-height:1.6;white-space:pre;overflow:auto;max-height:60vh}
.drop{border:2px dashed var(--border);border-radius:8px;padding:22px;text-align:center;color:var(--fg2);font-size:12.5px;cursor:pointer;margin-top:12px}
.drop.over{border-color:var(--accent);color:var(--accent);background:var(--accent-light)}
.auth{position:fixed;inset:0;background:var(--bg2);display:none;align-items:center;justify-content:center;z-index:200}
.auth.show{display:flex}
.auth .edit-panel{width:340px}
.auth .err{color:var(--red);font-size:12px;min-height:16px;margin-top:4px}
.toasts{position:fixed;right:18px;bottom:18px;display:flex;flex-direction:column;gap:8px;z-index:300}
.toast{padding:9px 14px;border-radius:7px;font-size:12.5px;box-shadow:0 4px 14px rgba(0,0,0,.15);border:1px solid var(--border);background:var(--bg);max-width:360px}
.toast.ok{border-color:var(--green);color:var(--green)}.toast.err{border-color:var(--red);color:var(--red)}
::-webkit-scrollbar{width:5px}::-webkit-scrollbar-track{background:transparent}::-webkit-scrollbar-thumb{background:var(--border);border-radius:3px}
</style>
</head>
<body>
<div class="auth" id="auth">
  <div class="edit-panel">
    <h3 id="auth-title">Log in</h3>
    <div class="sub" id="auth-sub"></div>
    <div class="field"><label>Password</label><input type="password" id="auth-pw" autocomplete="current-password"></div>
    <div class="field" id="auth-pw2-row" style="display:none"><label>Repeat password</label><input type="password" id="auth-pw2" autocomplete="new-password"></div>
    <div class="err" id="auth-err"></div>
    <div class="edit-actions"><button class="btn primary" id="auth-btn" onclick="submitAuth()">Log in</button></div>
  </div>
</div>

<div class="layout">
  <div class="sidebar">
    <div class="logo">
      <div><h1>frpc panel</h1><span>Client manager</span></div>
      <button class="icon-btn" title="Toggle theme" onclick="toggleTheme()">&#9680;</button>
    </div>
    <nav id="server-nav"></nav>
    <div class="status-bar">
      <a onclick="openVersion()" id="frpc-status"><span class="dot off"></span> frpc: checking...</a>
      <a onclick="logout()">&#10162; Log out</a>
    </div>
  </div>
  <div class="main" id="main"><div class="empty">Loading...</div></div>
</div>

<div class="edit-overlay" id="edit-overlay" onclick="if(event.target===this)closeEdit()">
  <div class="edit-panel" id="edit-panel"></div>
</div>
<div class="toasts" id="toasts"></div>

<script>
var TOKEN_KEY='frpc_panel_token', THEME_KEY='frpc_panel_theme';
var servers=[], selected=null, frpcInfo={installed:false}, logSocket=null, liveLogs=true, needSetup=false;

// ── Helpers ──
function escapeHtml(s){
  return String(s==null?'':s).replace(/[&<>"']/g,function(c){
    return {'&':'&amp;','<':'&lt;','>':'&gt;','"':'&quot;',"'":'&#39;'}[c];
  });
}
function token(){return localStorage.getItem(TOKEN_KEY)||''}
function api(path,opts){
  opts=opts||{};
  var headers=opts.headers||{};
  if(token())headers['X-Auth-Token']=token();
  if(opts.json!==undefined){headers['Content-Type']='application/json';opts.body=JSON.stringify(opts.json)}
  opts.headers=headers;
  return fetch('/api'+path,opts).then(function(r){
    if(r.status===401&&path.indexOf('/auth/')!==0){localStorage.removeItem(TOKEN_KEY);showAuth(false);throw new Error('unauthorized')}
    var ct=r.headers.get('Content-Type')||'';
    var body=ct.indexOf('application/json')>=0?r.json():r.text();
    return body.then(function(b){
      if(!r.ok)throw new Error((b&&b.error)||('HTTP '+r.status));
      return b;
    });
  });
}
function toast(msg,kind){
  var el=document.createElement('div');
  el.className='toast '+(kind||'ok');
  el.textContent=msg;
  document.getElementById('toasts').appendChild(el);
  setTimeout(function(){el.remove()},kind==='err'?6000:3000);
}
function fail(e){if(e.message!=='unauthorized')toast(e.message,'err')}
function card(l,v,c){return '<div class="card"><div class="label">'+l+'</div><div class="val '+(c||'')+'">'+v+'</div></div>'}
function find(id){for(var i=0;i<servers.length;i++)if(servers[i].id===id)return servers[i];return null}

// ── Theme ──
function applyTheme(t){document.documentElement.setAttribute('data-theme',t)}
function toggleTheme(){
  var t=document.documentElement.getAttribute('data-theme')==='dark'?'light':'dark';
  localStorage.setItem(THEME_KEY,t);applyTheme(t);
}
applyTheme(localStorage.getItem(THEME_KEY)||(window.matchMedia&&matchMedia('(prefers-color-scheme: dark)').matches?'dark':'light'));

// ── Auth ──
function showAuth(setup){
  needSetup=setup;
  closeLogs();
  document.getElementById('auth-title').textContent=setup?'Create admin password':'Log in';
  document.getElementById('auth-sub').textContent=setup?'First start: choose the password for this panel.':'';
  document.getElementById('auth-pw2-row').style.display=setup?'':'none';
  document.getElementById('auth-btn').textContent=setup?'Set password':'Log in';
  document.getElementById('auth-err').textContent='';
  document.getElementById('auth').classList.add('show');
  document.getElementById('auth-pw').focus();
}
function submitAuth(){
  var pw=document.getElementById('auth-pw').value, err=document.getElementById('auth-err');
  if(needSetup&&pw!==document.getElementById('auth-pw2').value){err.textContent='Passwords do not match';return}
  api(needSetup?'/auth/setup':'/auth/login',{method:'POST',json:{password:pw}}).then(function(r){
    localStorage.setItem(TOKEN_KEY,r.token);
    document.getElementById('auth-pw').value='';document.getElementById('auth-pw2').value='';
    document.getElementById('auth').classList.remove('show');
    refreshAll();
  }).catch(function(e){err.textContent=e.message});
}
document.getElementById('auth-pw').addEventListener('keydown',function(e){if(e.key==='Enter'&&!needSetup)submitAuth()});
document.getElementById('auth-pw2').addEventListener('keydown',function(e){if(e.key==='Enter')submitAuth()});
function logout(){
  api('/auth/logout',{method:'POST'}).catch(function(){}).then(function(){
    localStorage.removeItem(TOKEN_KEY);servers=[];selected=null;showAuth(false);
  });
}

// ── Servers ──
function refreshServers(){
  return api('/servers').then(function(list){
    servers=list||[];
    if(selected&&!find(selected))selected=null;
    if(!selected&&servers.length)selected=servers[0].id;
    renderNav();renderMain();
  }).catch(fail);
}
function refreshFrpc(){
  return api('/frpc/version').then(function(v){
    frpcInfo=v;
    document.getElementById('frpc-status').innerHTML=v.installed
      ?'<span class="dot on"></span> frpc '+escapeHtml(v.version||'installed')
      :'<span class="dot warn"></span> frpc not installed';
  }).catch(fail);
}
function renderNav(){
  var html='';
  servers.forEach(function(s){
    html+='<button class="'+(s.id===selected?'active':'')+'" onclick="selectServer(\''+s.id+'\')">'+
      '<span class="dot '+(s.running?'on':'off')+'"></span><span class="name">'+escapeHtml(s.name)+'</span></button>';
  });
  html+='<button class="add" onclick="openServerForm()">&#43; Add server</button>';
  document.getElementById('server-nav').innerHTML=html;
}
function selectServer(id){
  if(id===selected)return;
  selected=id;closeLogs();renderNav();renderMain();
}
function renderMain(){
  var main=document.getElementById('main'), s=find(selected);
  if(!s){
    closeLogs();
    main.innerHTML='<div class="empty">No servers yet.<br><button class="btn primary" onclick="openServerForm()">&#43; Add server</button></div>';
    return;
  }
  var proxies=s.proxies||[];
  var html='<h2>'+escapeHtml(s.name)+'</h2><div class="sub">'+escapeHtml(s.serverAddr)+':'+s.serverPort+' &middot; '+escapeHtml(s.id)+'</div>';
  html+='<div class="grid">'+
    card('Status',s.running?'Running':'Stopped',s.running?'g':'r')+
    card('PID',s.pid||'&mdash;','b')+
    card('Proxies',proxies.length,'')+
    card('Auth',s.authToken?escapeHtml(s.authMethod||'token'):'none','')+
    card('TLS',s.tlsEnable?'on':'off',s.tlsEnable?'g':'')+'</div>';
  html+='<div class="actions">'+
    (s.running
      ?'<button class="btn danger" onclick="control(\'stop\')">&#9632; Stop</button><button class="btn warn" onclick="control(\'restart\')">&#8635; Restart</button>'
      :'<button class="btn primary" onclick="control(\'start\')"'+(frpcInfo.installed?'':' disabled')+'>&#9654; Start</button>')+
    '<button class="btn" onclick="openServerForm(true)">&#9998; Edit</button>'+
    '<button class="btn" onclick="showConfig()">&#128196; frpc.toml</button>'+
    '<button class="btn danger" onclick="deleteServer()">&#10005; Delete</button></div>';
  if(!frpcInfo.installed)html+='<div class="sub">frpc is not installed. <a href="#" onclick="openVersion();return false">Install it</a> to start this server.</div>';

  html+='<h3>Proxies<button class="btn sm primary" onclick="openProxyForm()">&#43; Add proxy</button></h3>';
  if(!proxies.length){
    html+='<div class="sub">No proxies. Add one to expose a local service through frps.</div>';
  } else {
    html+='<table class="tbl"><tr><th>Name</th><th>Type</th><th>Local</th><th>Remote</th><th></th></tr>';
    proxies.forEach(function(p){
      var remote=(p.type==='tcp'||p.type==='udp')
        ?(p.remotePort?':'+p.remotePort:'auto')
        :escapeHtml((p.customDomains||[]).concat(p.subdomain?[p.subdomain+'.*']:[]).join(', '));
      html+='<tr><td class="k">'+escapeHtml(p.name)+'</td><td><span class="badge '+p.type+'">'+p.type+'</span></td>'+
        '<td>'+escapeHtml(p.localIP)+':'+p.localPort+'</td><td>'+remote+'</td>'+
        '<td class="act"><button class="btn sm" onclick="openProxyForm(\''+p.id+'\')">Edit</button> '+
        '<button class="btn sm danger" onclick="deleteProxy(\''+p.id+'\')">Delete</button></td></tr>';
    });
    html+='</table>';
    if(s.running)html+='<div class="sub">Restart frpc to apply proxy changes.</div>';
  }

  var keep=document.getElementById('log-box');
  html+='<h3>Logs<span class="live" onclick="toggleLive()"><span class="dot '+(liveLogs?'on':'off')+'"></span>live</span>'+
    '<button class="btn sm" onclick="loadLogs()">&#8635; Refresh</button></h3><div class="log-box" id="log-box"></div>';
  var prev=keep?keep.textContent:'';
  main.innerHTML=html;
  var box=document.getElementById('log-box');
  if(prev&&logSocket){box.textContent=prev;box.scrollTop=box.scrollHeight}
  else openLogs();
}
function control(action){
  var s=find(selected);if(!s)return;
  api('/servers/'+s.id+'/'+action,{method:'POST'}).then(function(){
    toast(s.name+': '+action+' ok');
    if(action!=='stop'){closeLogs()}
    return refreshServers();
  }).catch(fail);
}
function deleteServer(){
  var s=find(selected);if(!s)return;
  if(!confirm('Delete server "'+s.name+'" and its proxies?'+(s.running?' frpc will be stopped.':'')))return;
  api('/servers/'+s.id,{method:'DELETE'}).then(function(){
    toast('Server deleted');selected=null;closeLogs();return refreshServers();
  }).catch(fail);
}
function showConfig(){
  var s=find(selected);if(!s)return;
  api('/servers/'+s.id+'/config').then(function(text){
    openPanel('<h3>frpc.toml &middot; '+escapeHtml(s.name)+'</h3><div class="conf-view">'+escapeHtml(text)+'</div>'+
      '<div class="edit-actions"><button class="btn" onclick="closeEdit()">Close</button></div>');
  }).catch(fail);
}

// ── Forms ──
function openPanel(html){
  document.getElementById('edit-panel').innerHTML=html;
  document.getElementById('edit-overlay').classList.add('show');
}
function closeEdit(){document.getElementById('edit-overlay').classList.remove('show')}
function field(id,label,value,attrs){
  return '<div class="field" id="f-'+id+'"><label>'+label+'</label><input id="'+id+'" value="'+escapeHtml(value==null?'':value)+'" '+(attrs||'')+'></div>';
}
function val(id){return document.getElementById(id).value.trim()}
function num(id){var v=val(id);return v===''?0:parseInt(v,10)}

function openServerForm(edit){
  var s=edit?find(selected):{serverPort:7000};
  openPanel('<h3>'+(edit?'Edit server':'Add server')+'</h3>'+
    field('s-name','Name',s.name,'placeholder="home"')+
    '<div class="row">'+field('s-addr','Server address',s.serverAddr,'placeholder="frps.example.com"')+
    field('s-port','Server port',s.serverPort,'type="number" min="1" max="65535"')+'</div>'+
    '<div class="row">'+field('s-token','Auth token',s.authToken,'type="password" autocomplete="off"')+
    field('s-method','Auth method',s.authMethod,'placeholder="token"')+'</div>'+
    field('s-user','User',s.user,'placeholder="optional proxy name prefix"')+
    '<div class="field check"><label><input type="checkbox" id="s-tls" '+(s.tlsEnable?'checked':'')+'> TLS to frps</label></div>'+
    '<div class="edit-actions"><button class="btn" onclick="closeEdit()">Cancel</button>'+
    '<button class="btn primary" onclick="saveServer('+(edit?'true':'false')+')">Save</button></div>');
  document.getElementById('s-name').focus();
}
function saveServer(edit){
  var body={name:val('s-name'),serverAddr:val('s-addr'),serverPort:num('s-port'),authToken:val('s-token'),
    authMethod:val('s-method'),user:val('s-user'),tlsEnable:document.getElementById('s-tls').checked};
  var req=edit?api('/servers/'+selected,{method:'PUT',json:body}):api('/servers',{method:'POST',json:body});
  req.then(function(r){
    closeEdit();
    if(!edit&&r&&r.id){selected=r.id;closeLogs()}
    toast(edit?'Server saved':'Server created');
    return refreshServers();
  }).catch(fail);
}

function openProxyForm(id){
  var s=find(selected);if(!s)return;
  var p=null;
  (s.proxies||[]).forEach(function(x){if(x.id===id)p=x});
  var edit=!!p;
  p=p||{type:'tcp',localIP:'127.0.0.1'};
  var types=['tcp','udp','http','https'].map(function(t){
    return '<option value="'+t+'"'+(p.type===t?' selected':'')+'>'+t.toUpperCase()+'</option>';
  }).join('');
  openPanel('<h3>'+(edit?'Edit proxy':'Add proxy')+'</h3>'+
    '<div class="row">'+field('p-name','Name',p.name,'placeholder="ssh"')+
    '<div class="field"><label>Type</label><select id="p-type" onchange="proxyTypeChanged()">'+types+'</select></div></div>'+
    '<div class="row">'+field('p-lip','Local IP',p.localIP)+field('p-lport','Local port',p.localPort,'type="number" min="1" max="65535"')+'</div>'+
    field('p-rport','Remote port',p.remotePort||'','type="number" min="0" max="65535" placeholder="empty: assigned by frps"')+
    field('p-domains','Custom domains',(p.customDomains||[]).join(', '),'placeholder="app.example.com, www.example.com"')+
    field('p-sub','Subdomain',p.subdomain,'placeholder="app"')+
    '<div class="edit-actions"><button class="btn" onclick="closeEdit()">Cancel</button>'+
    '<button class="btn primary" onclick="saveProxy(\''+(edit?p.id:'')+'\')">Save</button></div>');
  proxyTypeChanged();
  document.getElementById('p-name').focus();
}
function proxyTypeChanged(){
  var t=document.getElementById('p-type').value, l4=(t==='tcp'||t==='udp');
  document.getElementById('f-p-rport').style.display=l4?'':'none';
  document.getElementById('f-p-domains').style.display=l4?'none':'';
  document.getElementById('f-p-sub').style.display=l4?'none':'';
}
function saveProxy(id){
  var t=document.getElementById('p-type').value, l4=(t==='tcp'||t==='udp');
  var body={name:val('p-name'),type:t,localIP:val('p-lip'),localPort:num('p-lport')};
  if(l4){body.remotePort=num('p-rport')}
  else{
    body.customDomains=val('p-domains').split(',').map(function(d){return d.trim()}).filter(function(d){return d});
    body.subdomain=val('p-sub');
  }
  var base='/servers/'+selected+'/proxies';
  var req=id?api(base+'/'+id,{method:'PUT',json:body}):api(base,{method:'POST',json:body});
  req.then(function(){closeEdit();toast(id?'Proxy saved':'Proxy added');return refreshServers()}).catch(fail);
}
function deleteProxy(id){
  var s=find(selected);if(!s)return;
  var p=(s.proxies||[]).filter(function(x){return x.id===id})[0];
  if(!p||!confirm('Delete proxy "'+p.name+'"?'))return;
  api('/servers/'+s.id+'/proxies/'+id,{method:'DELETE'}).then(function(){toast('Proxy deleted');return refreshServers()}).catch(fail);
}

// ── Logs ──
function closeLogs(){
  if(logSocket){var ws=logSocket;logSocket=null;ws.onclose=null;ws.close()}
}
function appendLog(text){
  var box=document.getElementById('log-box');if(!box)return;
  var stick=box.scrollTop+box.clientHeight>=box.scrollHeight-20;
  box.textContent+=text.replace(/\x1b\[[0-9;]*m/g,'');
  if(box.textContent.length>200000)box.textContent=box.textContent.slice(-150000);
  if(stick)box.scrollTop=box.scrollHeight;
}
function loadLogs(){
  var s=find(selected);if(!s)return;
  if(liveLogs&&window.WebSocket){openLogs();return}
  closeLogs();
  return api('/servers/'+s.id+'/logs').then(function(r){
    var box=document.getElementById('log-box');if(!box)return;
    box.textContent='';
    if(r.logs)appendLog(r.logs+'\n');else box.textContent='No logs yet';
  }).catch(fail);
}
// openLogs streams the tail and then live output over the websocket.
function openLogs(){
  var s=find(selected);if(!s)return;
  if(!liveLogs||!window.WebSocket){loadLogs();return}
  closeLogs();
  var box=document.getElementById('log-box');if(box)box.textContent='';
  var id=s.id, proto=location.protocol==='https:'?'wss:':'ws:';
  var ws=new WebSocket(proto+'//'+location.host+'/api/servers/'+encodeURIComponent(id)+'/logs/ws?token='+encodeURIComponent(token()));
  ws.onmessage=function(ev){appendLog(ev.data)};
  ws.onclose=function(){if(logSocket===ws){logSocket=null;setTimeout(function(){if(!logSocket&&liveLogs&&selected===id)openLogs()},3000)}};
  logSocket=ws;
}
function toggleLive(){
  liveLogs=!liveLogs;
  if(!liveLogs)closeLogs();
  renderMain();
}

// ── frpc binary ──
function openVersion(){
  openPanel('<h3>frpc binary</h3>'+
    '<table class="tbl"><tr><td class="k">Installed</td><td id="v-cur">'+(frpcInfo.installed?escapeHtml(frpcInfo.version||'unknown version'):'<span class="badge off">no</span>')+'</td></tr>'+
    '<tr><td class="k">Latest release</td><td id="v-latest">checking...</td></tr></table>'+
    '<div class="actions"><button class="btn primary" id="v-install" onclick="installLatest()">&#8681; Install latest</button></div>'+
    '<div class="drop" id="v-drop">Drop a frp release archive (.tar.gz or .zip) here, or click to choose one'+
    '<input type="file" id="v-file" accept=".gz,.tgz,.zip" style="display:none"></div>'+
    '<div class="sub" id="v-msg" style="margin-top:10px"></div>'+
    '<div class="edit-actions"><button class="btn" onclick="closeEdit()">Close</button></div>');
  api('/frpc/latest').then(function(r){
    document.getElementById('v-latest').innerHTML=escapeHtml(r.version)+' <span class="sub">'+escapeHtml(r.asset||'')+'</span>';
  }).catch(function(e){var el=document.getElementById('v-latest');if(el)el.textContent=e.message});
  var drop=document.getElementById('v-drop'), input=document.getElementById('v-file');
  drop.onclick=function(){input.click()};
  input.onchange=function(){if(input.files.length)uploadArchive(input.files[0])};
  drop.ondragover=function(e){e.preventDefault();drop.classList.add('over')};
  drop.ondragleave=function(){drop.classList.remove('over')};
  drop.ondrop=function(e){e.preventDefault();drop.classList.remove('over');if(e.dataTransfer.files.length)uploadArchive(e.dataTransfer.files[0])};
}
function installDone(r){
  toast('frpc installed'+(r.version?': '+r.version:''));
  closeEdit();refreshFrpc().then(renderMain);
}
function installLatest(){
  var btn=document.getElementById('v-install');btn.disabled=true;
  document.getElementById('v-msg').textContent='Downloading from GitHub...';
  api('/frpc/install',{method:'POST'}).then(installDone).catch(function(e){
    btn.disabled=false;document.getElementById('v-msg').textContent='';fail(e);
  });
}
function uploadArchive(file){
  var fd=new FormData();fd.append('file',file);
  document.getElementById('v-msg').textContent='Uploading '+file.name+'...';
  api('/frpc/upload',{method:'POST',body:fd}).then(installDone).catch(function(e){
    document.getElementById('v-msg').textContent='';fail(e);
  });
}

// ── Init ──
function refreshAll(){
  return Promise.all([refreshFrpc(),refreshServers()]);
}
fetch('/api/auth/status').then(function(r){return r.json()}).then(function(st){
  if(st.needSetup){localStorage.removeItem(TOKEN_KEY);showAuth(true);return}
  if(!token()){showAuth(false);return}
  refreshAll();
}).catch(function(){toast('Panel unreachable','err')});
setInterval(function(){
  if(!token()||document.getElementById('auth').classList.contains('show'))return;
  if(document.getElementById('edit-overlay').classList.contains('show'))return;
  refreshServers();
},10000);
</script>
</body>
</html>
`
