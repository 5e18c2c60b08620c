// Package server exposes HTTP handlers, including WebSocket upgrades, the
// health check, and the entry page.
package server

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

// Server wires the hub, registry, presence handler, and dispatcher together.
// Every handler receives its dependencies through this struct; there is no
// ambient global state.
type Server struct {
	hub        *Hub
	registry   *Registry
	presence   *Presence
	dispatcher *Dispatcher
}

// NewServer builds a fully wired Server from the active configuration. Start
// must be called before serving traffic.
func NewServer() *Server {
	cfg := currentConfig()

	hub := NewHub()
	registry := NewRegistry()
	srv := &Server{
		hub:        hub,
		registry:   registry,
		presence:   NewPresence(registry, hub),
		dispatcher: NewDispatcher(registry, hub, cfg.Dispatch.Workers, cfg.Dispatch.QueueSize),
	}
	return srv
}

// Start launches the hub loop and the dispatch workers.
func (s *Server) Start() {
	go s.hub.Run()
	s.dispatcher.Start()
	log.Println("Hub and dispatcher started; ready for WebSocket connections")
}

// Hub exposes the server's hub for shutdown coordination.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Dispatcher exposes the server's dispatch pool for shutdown coordination.
func (s *Server) Dispatcher() *Dispatcher {
	return s.dispatcher
}

// Registry exposes the connection registry.
func (s *Server) Registry() *Registry {
	return s.registry
}

// WebSocketHandler upgrades the HTTP connection and registers a new client
// with the hub, which starts the client's read/write pumps.
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := NewClient(conn, s, r.RemoteAddr)
	s.hub.Register(client)
}

// HealthHandler reports process liveness as plain text.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Roomcast server is running!")
}

// IndexHandler serves the entry page. Unknown paths redirect back here with
// a notice so a mistyped URL never surfaces a bare 404.
func (s *Server) IndexHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.Redirect(w, r, "/?notice=unknown-page", http.StatusSeeOther)
		return
	}

	w.Header().Set("Content-Type", "text/html")
	if _, err := fmt.Fprint(w, indexPage); err != nil {
		log.Printf("Error writing entry page: %v", err)
	}
}

const indexPage = `<!DOCTYPE html>
<html>
<head>
    <title>Roomcast</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #messages { border: 1px solid #ccc; height: 300px; padding: 10px; overflow-y: scroll; margin: 10px 0; background-color: #f9f9f9; }
        input[type="text"] { padding: 5px; margin-right: 10px; }
        button { padding: 5px 15px; background-color: #007cba; color: white; border: none; cursor: pointer; }
    </style>
</head>
<body>
    <h1>Roomcast</h1>
    <div>
        <input type="text" id="usuario" placeholder="Name">
        <input type="text" id="sala" placeholder="Room">
        <button onclick="join()">Join</button>
    </div>
    <div>
        <input type="text" id="mensaje" placeholder="Message" disabled>
        <button id="sendBtn" onclick="sendMessage()" disabled>Send</button>
    </div>
    <div id="messages"></div>
    <script>
        let ws = null;

        function show(text) {
            const el = document.createElement('div');
            el.textContent = text;
            const box = document.getElementById('messages');
            box.appendChild(el);
            box.scrollTop = box.scrollHeight;
        }

        function join() {
            const usuario = document.getElementById('usuario').value.trim();
            const sala = document.getElementById('sala').value.trim();
            if (!usuario || !sala) { show('Name and room are required'); return; }

            ws = new WebSocket('ws://' + location.host + '/ws');
            ws.onopen = function() {
                ws.send(JSON.stringify({event: 'join', data: {usuario: usuario, sala: sala}}));
                document.getElementById('mensaje').disabled = false;
                document.getElementById('sendBtn').disabled = false;
            };
            ws.onmessage = function(e) {
                for (const line of e.data.split('\n')) {
                    const env = JSON.parse(line);
                    if (env.event === 'status') show('* ' + env.data.msg);
                    if (env.event === 'chat_message') show(env.data.usuario + ' [' + env.data.tiempo + ']: ' + env.data.mensaje);
                    if (env.event === 'update_users') show('* in room: ' + env.data.map(u => u.usuario).join(', '));
                }
            };
            ws.onclose = function() { show('* connection closed'); };
        }

        function sendMessage() {
            const input = document.getElementById('mensaje');
            const mensaje = input.value.trim();
            if (!mensaje || !ws) return;
            ws.send(JSON.stringify({event: 'message', data: {mensaje: mensaje, tipo: 'texto'}}));
            input.value = '';
        }
    </script>
</body>
</html>`
