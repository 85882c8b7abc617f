package dnsserver

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/miekg/dns"
	"go.uber.org/zap"

	"github.com/xolotl-project/xolotl/internal/config"
	"github.com/xolotl-project/xolotl/pkg/registry"
)

// Server 基于服务目录应答DNS查询
//
// 查询名格式为 <服务名>.<环境>.<域名后缀>，A记录返回地址主机为IP
// 字面量的实例，SRV记录携带从地址解析出的端口。目录是权威数据源，
// 不做上游递归。
type Server struct {
	cfg        *config.Config
	logger     config.Logger
	registry   registry.ServiceRegistry
	domain     string
	udpServer  *dns.Server
	tcpServer  *dns.Server
	shutdownWg sync.WaitGroup
}

// NewServer 创建一个新的DNS服务实例
func NewServer(cfg *config.Config, logger config.Logger, reg registry.ServiceRegistry) *Server {
	return &Server{
		cfg:      cfg,
		logger:   logger,
		registry: reg,
		domain:   strings.TrimSuffix(cfg.DNS.Domain, "."),
	}
}

// Start 启动DNS服务器
func (s *Server) Start() error {
	mux := dns.NewServeMux()
	mux.HandleFunc(".", s.handleRequest)

	addr := fmt.Sprintf("%s:%d", s.cfg.DNS.ListenAddress, s.cfg.DNS.Port)

	// 如果启用UDP，启动UDP服务器
	if s.cfg.DNS.Protocol == "udp" || s.cfg.DNS.Protocol == "both" {
		s.udpServer = &dns.Server{
			Addr:    addr,
			Net:     "udp",
			Handler: mux,
			UDPSize: 65535,
		}

		s.shutdownWg.Add(1)
		go func() {
			defer s.shutdownWg.Done()
			s.logger.Info("启动UDP DNS服务器", zap.String("address", addr))
			if err := s.udpServer.ListenAndServe(); err != nil {
				s.logger.Error("UDP DNS服务器异常退出", zap.Error(err))
			}
		}()
	}

	// 如果启用TCP，启动TCP服务器
	if s.cfg.DNS.Protocol == "tcp" || s.cfg.DNS.Protocol == "both" {
		s.tcpServer = &dns.Server{
			Addr:    addr,
			Net:     "tcp",
			Handler: mux,
		}

		s.shutdownWg.Add(1)
		go func() {
			defer s.shutdownWg.Done()
			s.logger.Info("启动TCP DNS服务器", zap.String("address", addr))
			if err := s.tcpServer.ListenAndServe(); err != nil {
				s.logger.Error("TCP DNS服务器异常退出", zap.Error(err))
			}
		}()
	}

	return nil
}

// Stop 停止DNS服务器
func (s *Server) Stop() error {
	var errs []error

	if s.udpServer != nil {
		if err := s.udpServer.Shutdown(); err != nil {
			errs = append(errs, fmt.Errorf("关闭UDP服务器失败: %w", err))
		}
	}

	if s.tcpServer != nil {
		if err := s.tcpServer.Shutdown(); err != nil {
			errs = append(errs, fmt.Errorf("关闭TCP服务器失败: %w", err))
		}
	}

	// 等待所有服务器关闭
	s.shutdownWg.Wait()

	if len(errs) > 0 {
		return fmt.Errorf("停止DNS服务器时发生错误: %v", errs)
	}

	return nil
}

// parseQueryName 从查询名解析出服务名和环境
//
// 查询名必须形如 <服务名>.<环境>.<域名后缀>.，否则返回false。
func (s *Server) parseQueryName(name string) (string, string, bool) {
	name = strings.ToLower(strings.TrimSuffix(name, "."))

	suffix := "." + strings.ToLower(s.domain)
	if !strings.HasSuffix(name, suffix) {
		return "", "", false
	}

	labels := strings.Split(strings.TrimSuffix(name, suffix), ".")
	if len(labels) != 2 || labels[0] == "" || labels[1] == "" {
		return "", "", false
	}

	return labels[0], labels[1], true
}

// handleRequest 处理DNS请求
func (s *Server) handleRequest(w dns.ResponseWriter, r *dns.Msg) {
	m := new(dns.Msg)
	m.SetReply(r)
	m.Authoritative = true

	// 只处理标准查询
	if r.Opcode != dns.OpcodeQuery {
		m.Rcode = dns.RcodeNotImplemented
		w.WriteMsg(m)
		return
	}

	if len(r.Question) == 0 {
		m.Rcode = dns.RcodeFormatError
		w.WriteMsg(m)
		return
	}

	q := r.Question[0]
	s.logger.Debug("收到DNS查询请求",
		zap.String("name", q.Name),
		zap.String("type", dns.TypeToString[q.Qtype]))

	serviceName, environment, ok := s.parseQueryName(q.Name)
	if !ok {
		m.Rcode = dns.RcodeNameError
		w.WriteMsg(m)
		return
	}

	entries, err := s.registry.Resolve(context.Background(), serviceName, environment)
	if err != nil {
		s.logger.Error("查询服务目录失败", zap.Error(err))
		m.Rcode = dns.RcodeServerFailure
		w.WriteMsg(m)
		return
	}

	if len(entries) == 0 {
		m.Rcode = dns.RcodeNameError
		w.WriteMsg(m)
		return
	}

	ttl := uint32(s.cfg.DNS.TTL)
	switch q.Qtype {
	case dns.TypeA:
		m.Answer = append(m.Answer, buildARecords(q.Name, entries, ttl)...)
	case dns.TypeSRV:
		m.Answer = append(m.Answer, buildSRVRecords(q.Name, entries, ttl)...)
	}

	w.WriteMsg(m)
}

// buildARecords 为地址主机是IPv4字面量的实例构造A记录
func buildARecords(qname string, entries []*registry.ServiceEntry, ttl uint32) []dns.RR {
	records := make([]dns.RR, 0, len(entries))
	for _, entry := range entries {
		ip := net.ParseIP(entry.Address.Host())
		if ip == nil {
			continue
		}
		ip4 := ip.To4()
		if ip4 == nil {
			continue
		}

		records = append(records, &dns.A{
			Hdr: dns.RR_Header{
				Name:   qname,
				Rrtype: dns.TypeA,
				Class:  dns.ClassINET,
				Ttl:    ttl,
			},
			A: ip4,
		})
	}
	return records
}

// buildSRVRecords 为能解析出端口的实例构造SRV记录
func buildSRVRecords(qname string, entries []*registry.ServiceEntry, ttl uint32) []dns.RR {
	records := make([]dns.RR, 0, len(entries))
	for _, entry := range entries {
		port, ok := entry.Address.ExtractPort()
		if !ok {
			continue
		}

		records = append(records, &dns.SRV{
			Hdr: dns.RR_Header{
				Name:   qname,
				Rrtype: dns.TypeSRV,
				Class:  dns.ClassINET,
				Ttl:    ttl,
			},
			Priority: 0,
			Weight:   0,
			Port:     uint16(port),
			Target:   dns.Fqdn(entry.Address.Host()),
		})
	}
	return records
}
