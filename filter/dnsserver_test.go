package filter

import (
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// dnsServer a minimal UDP DNS server answering A and AAAA questions from a
// fixed table, so host names resolve without the network
type dnsServer struct {
	records map[string]map[string]string
}

func newDNSServer(records map[string]map[string]string) *dnsServer {
	return &dnsServer{records: records}
}

// startAndServe listen on a loopback port and return its address
func (dns *dnsServer) startAndServe() (string, error) {
	l, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	if err != nil {
		return "", err
	}
	go dns.serve(l)
	return l.LocalAddr().String(), nil
}

func (dns *dnsServer) serve(conn net.PacketConn) {
	for {
		tmp := make([]byte, 1024)
		n, addr, err := conn.ReadFrom(tmp)
		if err != nil {
			return
		}
		packet := gopacket.NewPacket(tmp[:n], layers.LayerTypeDNS, gopacket.Default)
		request, ok := packet.Layer(layers.LayerTypeDNS).(*layers.DNS)
		if !ok || len(request.Questions) < 1 {
			continue
		}
		var answer string
		question := request.Questions[0]
		if recs, ok := dns.records[string(question.Name)]; ok {
			answer = recs[question.Type.String()]
		}
		if reply := dns.respond(request, question, answer); reply != nil {
			_, _ = conn.WriteTo(reply, addr)
		}
	}
}

func (dns *dnsServer) respond(request *layers.DNS, question layers.DNSQuestion, ip string) []byte {
	reply := &layers.DNS{
		ID:           request.ID,
		QR:           true,
		OpCode:       layers.DNSOpCodeQuery,
		AA:           true,
		RD:           request.RD,
		RA:           true,
		ResponseCode: layers.DNSResponseCodeNoErr,
		Questions:    request.Questions,
	}
	if a := net.ParseIP(ip); a != nil {
		reply.Answers = append(reply.Answers, layers.DNSResourceRecord{
			Name:  question.Name,
			Type:  question.Type,
			Class: layers.DNSClassIN,
			TTL:   60,
			IP:    a,
		})
	}
	reply.QDCount = uint16(len(reply.Questions))
	reply.ANCount = uint16(len(reply.Answers))
	buf := gopacket.NewSerializeBuffer()
	if err := reply.SerializeTo(buf, gopacket.SerializeOptions{}); err != nil {
		return nil
	}
	return buf.Bytes()
}
