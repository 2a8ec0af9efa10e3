// Package network allocates the per-container netns id, creates the veth
// pair and named network namespace, and configures addressing both on the
// host side and inside the container. Grounded on lib/network/bridge.go
// (hypeman)'s use of vishvananda/netlink for veth/bridge/route management,
// adapted from hypeman's TAP-device/VM model to a veth-pair/netns model,
// and on lib/system/init/network.go for the in-namespace configuration
// sequence (lo up, address assign, default route, resolv.conf write).
package network

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"runtime"

	"github.com/vishvananda/netlink"
	"github.com/vishvananda/netns"
	"golang.org/x/sys/unix"
)

const netnsRunDir = "/var/run/netns"

// Allocation is a container's assigned network identity.
type Allocation struct {
	N         int
	HostVeth  string // veth0_<N>, attached to the bridge
	NSVeth    string // veth1_<N>, moved into the netns
	NetnsName string // netns_<N>
}

func names(n int) Allocation {
	return Allocation{
		N:         n,
		HostVeth:  fmt.Sprintf("veth0_%d", n),
		NSVeth:    fmt.Sprintf("veth1_%d", n),
		NetnsName: fmt.Sprintf("netns_%d", n),
	}
}

// AllocateID draws a random integer in [1, 50000] until
// /var/run/netns/netns_<N> is absent, per spec.md §4.6. Collisions are
// handled by retry only, matching the original's netns-id allocation (the
// MAC/IPv4 draws below carry no such retry, a known limitation spec.md §4.6
// calls out explicitly).
func AllocateID() (int, error) {
	for attempt := 0; attempt < 10000; attempt++ {
		n, err := randIntn(50000)
		if err != nil {
			return 0, err
		}
		n++ // shift [0,50000) to [1,50000]
		path := filepath.Join(netnsRunDir, fmt.Sprintf("netns_%d", n))
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return n, nil
		}
	}
	return 0, ErrNetnsIDExhausted
}

func randIntn(n int64) (int64, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(n))
	if err != nil {
		return 0, fmt.Errorf("generate random id: %w", err)
	}
	return v.Int64(), nil
}

// HostSetup performs the host-side wiring for a new container's network,
// in the order spec.md §4.6 mandates: create the veth pair, bring the host
// end up, attach it to the bridge, create the named netns, and move the
// container end into it.
func HostSetup(n int, bridgeName string) (Allocation, error) {
	a := names(n)

	bridge, err := netlink.LinkByName(bridgeName)
	if err != nil {
		return a, fmt.Errorf("lookup bridge %s: %w", bridgeName, err)
	}

	veth := &netlink.Veth{
		LinkAttrs: netlink.LinkAttrs{Name: a.HostVeth},
		PeerName:  a.NSVeth,
	}
	if err := netlink.LinkAdd(veth); err != nil {
		return a, fmt.Errorf("create veth pair %s/%s: %w", a.HostVeth, a.NSVeth, err)
	}

	hostLink, err := netlink.LinkByName(a.HostVeth)
	if err != nil {
		return a, fmt.Errorf("lookup %s: %w", a.HostVeth, err)
	}
	if err := netlink.LinkSetUp(hostLink); err != nil {
		return a, fmt.Errorf("bring up %s: %w", a.HostVeth, err)
	}

	if err := netlink.LinkSetMaster(hostLink, bridge); err != nil {
		return a, fmt.Errorf("attach %s to %s: %w", a.HostVeth, bridgeName, err)
	}

	if err := os.MkdirAll(netnsRunDir, 0o755); err != nil {
		return a, fmt.Errorf("create %s: %w", netnsRunDir, err)
	}
	// netns.NewNamed switches the calling thread into the new namespace;
	// pin the goroutine to this thread and switch back to the host
	// namespace so the peer lookup and move below run on the host side.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	hostNs, err := netns.Get()
	if err != nil {
		return a, fmt.Errorf("get host netns: %w", err)
	}
	defer hostNs.Close()
	newNs, err := netns.NewNamed(a.NetnsName)
	if err != nil {
		return a, fmt.Errorf("create netns %s: %w", a.NetnsName, err)
	}
	defer newNs.Close()
	if err := netns.Set(hostNs); err != nil {
		return a, fmt.Errorf("return to host netns: %w", err)
	}

	nsVethLink, err := netlink.LinkByName(a.NSVeth)
	if err != nil {
		return a, fmt.Errorf("lookup %s: %w", a.NSVeth, err)
	}
	if err := netlink.LinkSetNsFd(nsVethLink, int(newNs)); err != nil {
		return a, fmt.Errorf("move %s into %s: %w", a.NSVeth, a.NetnsName, err)
	}

	return a, nil
}

// ContainerConfig is the randomly-drawn addressing assigned inside the
// container's network namespace (spec.md §4.6).
type ContainerConfig struct {
	MAC net.HardwareAddr
	IP  net.IP
}

// RandomContainerConfig draws the MAC/IPv4 scheme spec.md §4.6 specifies:
// MAC 02:42:ac:11:00<XY> with X,Y random decimal digits 1-9, and IPv4
// 10.0.0.<R>/24 with R random in [2,254]. Exported so tests can check the
// generated range without touching netlink.
func RandomContainerConfig() (ContainerConfig, error) {
	x, err := randIntn(9)
	if err != nil {
		return ContainerConfig{}, err
	}
	y, err := randIntn(9)
	if err != nil {
		return ContainerConfig{}, err
	}
	r, err := randIntn(253)
	if err != nil {
		return ContainerConfig{}, err
	}

	mac := net.HardwareAddr{0x02, 0x42, 0xac, 0x11, 0x00, byte((x+1)*10 + (y + 1))}
	ip := net.IPv4(10, 0, 0, byte(r+2))
	return ContainerConfig{MAC: mac, IP: ip}, nil
}

// ConfigureAddress brings up loopback and the container's veth end, assigns
// the random MAC/IPv4, and adds the default route. Must run after setns
// into the netns and before chroot (spec.md §4.7 step 9); the resolv.conf
// write is split out into WriteResolvConf since it must happen after
// chroot (spec.md §4.6 step 6).
func ConfigureAddress(nsVeth string) error {
	lo, err := netlink.LinkByName("lo")
	if err != nil {
		return fmt.Errorf("lookup lo: %w", err)
	}
	if err := netlink.LinkSetUp(lo); err != nil {
		return fmt.Errorf("bring up lo: %w", err)
	}

	cfg, err := RandomContainerConfig()
	if err != nil {
		return err
	}

	veth, err := netlink.LinkByName(nsVeth)
	if err != nil {
		return fmt.Errorf("lookup %s: %w", nsVeth, err)
	}
	if err := netlink.LinkSetHardwareAddr(veth, cfg.MAC); err != nil {
		return fmt.Errorf("set mac on %s: %w", nsVeth, err)
	}

	addr := &netlink.Addr{IPNet: &net.IPNet{IP: cfg.IP, Mask: net.CIDRMask(24, 32)}}
	if err := netlink.AddrAdd(veth, addr); err != nil {
		return fmt.Errorf("assign address to %s: %w", nsVeth, err)
	}

	if err := netlink.LinkSetUp(veth); err != nil {
		return fmt.Errorf("bring up %s: %w", nsVeth, err)
	}

	gateway := net.IPv4(10, 0, 0, 1)
	route := &netlink.Route{LinkIndex: veth.Attrs().Index, Gw: gateway}
	if err := netlink.RouteAdd(route); err != nil {
		return fmt.Errorf("add default route via %s: %w", gateway, err)
	}

	return nil
}

// WriteResolvConf writes the container's /etc/resolv.conf. Must be called
// after chroot, so "/etc" here already refers to the container's own root
// (spec.md §4.6 step 6, §4.7 step 14 ordering note).
func WriteResolvConf(dnsServer string) error {
	if err := os.MkdirAll("/etc", 0o755); err != nil {
		return fmt.Errorf("create /etc: %w", err)
	}
	resolvConf := fmt.Sprintf("nameserver %s\n", dnsServer)
	if err := os.WriteFile("/etc/resolv.conf", []byte(resolvConf), 0o644); err != nil {
		return fmt.Errorf("write resolv.conf: %w", err)
	}
	return nil
}

// Teardown deletes the host-side veth (which takes its peer down with it)
// and the named netns, tolerating either already being gone (spec.md §4.8
// step 2).
func Teardown(n int) error {
	a := names(n)

	if link, err := netlink.LinkByName(a.HostVeth); err == nil {
		if err := netlink.LinkDel(link); err != nil {
			return fmt.Errorf("delete veth %s: %w", a.HostVeth, err)
		}
	}

	if err := netns.DeleteNamed(a.NetnsName); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete netns %s: %w", a.NetnsName, err)
	}

	return nil
}

// OpenNetnsFD opens /var/run/netns/netns_<N> for setns, per spec.md §4.7
// step 8. Uses unix.Open directly rather than os.Open so the returned fd
// survives past this call — an *os.File's finalizer would otherwise close
// the underlying fd once the File value is garbage collected.
func OpenNetnsFD(n int) (int, error) {
	path := filepath.Join(netnsRunDir, fmt.Sprintf("netns_%d", n))
	fd, err := unix.Open(path, unix.O_RDONLY, 0)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	return fd, nil
}
