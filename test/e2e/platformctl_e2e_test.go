//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"os/exec"
	"strings"
	"syscall"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/exampletech/platformctl/pkg/discovery"
	"github.com/exampletech/platformctl/test/utils"
)

const platformCRDs = `apiVersion: apiextensions.k8s.io/v1
kind: CustomResourceDefinition
metadata:
  name: kafkaclusters.kafka.example.tech
spec:
  group: kafka.example.tech
  names:
    kind: KafkaCluster
    listKind: KafkaClusterList
    plural: kafkaclusters
    singular: kafkacluster
  scope: Namespaced
  versions:
  - name: v1alpha1
    served: true
    storage: true
    schema:
      openAPIV3Schema:
        type: object
        x-kubernetes-preserve-unknown-fields: true
    subresources:
      status: {}
---
apiVersion: apiextensions.k8s.io/v1
kind: CustomResourceDefinition
metadata:
  name: secretclasses.secrets.example.tech
spec:
  group: secrets.example.tech
  names:
    kind: SecretClass
    listKind: SecretClassList
    plural: secretclasses
    singular: secretclass
  scope: Cluster
  versions:
  - name: v1alpha1
    served: true
    storage: true
    schema:
      openAPIV3Schema:
        type: object
        x-kubernetes-preserve-unknown-fields: true
`

const unrelatedCRD = `apiVersion: apiextensions.k8s.io/v1
kind: CustomResourceDefinition
metadata:
  name: widgets.unrelated.example.com
spec:
  group: unrelated.example.com
  names:
    kind: Widget
    listKind: WidgetList
    plural: widgets
    singular: widget
  scope: Namespaced
  versions:
  - name: v1
    served: true
    storage: true
    schema:
      openAPIV3Schema:
        type: object
        x-kubernetes-preserve-unknown-fields: true
`

const trinoCRD = `apiVersion: apiextensions.k8s.io/v1
kind: CustomResourceDefinition
metadata:
  name: trinocatalogs.trino.example.tech
spec:
  group: trino.example.tech
  names:
    kind: TrinoCatalog
    listKind: TrinoCatalogList
    plural: trinocatalogs
    singular: trinocatalog
  scope: Namespaced
  versions:
  - name: v1alpha1
    served: true
    storage: true
    schema:
      openAPIV3Schema:
        type: object
        x-kubernetes-preserve-unknown-fields: true
`

var _ = Describe("platformctl", Ordered, Label("cli"), func() {
	BeforeAll(func() {
		By("installing platform and unrelated CRDs")
		Expect(utils.ApplyManifest(platformCRDs + "---\n" + unrelatedCRD)).To(Succeed())
	})

	AfterAll(func() {
		_ = utils.DeleteManifest(platformCRDs + "---\n" + unrelatedCRD + "---\n" + trinoCRD)
	})

	It("should print the platform groups", func() {
		out, err := platformctl("groups")
		Expect(err).NotTo(HaveOccurred())
		Expect(utils.GetNonEmptyLines(out)).To(Equal(discovery.GroupFilter()))
	})

	It("should wait for the installed platform CRDs", func() {
		out, err := platformctl("crds", "wait", "--timeout", "2m")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("platform kinds established"))
	})

	It("should list only platform kinds", func() {
		Eventually(func(g Gomega) {
			out, err := platformctl("crds", "list", "-o", "name")
			g.Expect(err).NotTo(HaveOccurred())
			g.Expect(utils.GetNonEmptyLines(out)).To(ConsistOf(
				"KafkaCluster.v1alpha1.kafka.example.tech",
				"SecretClass.v1alpha1.secrets.example.tech",
			))
		}, 30*time.Second, time.Second).Should(Succeed())
	})

	It("should report resource names and scopes as json", func() {
		out, err := platformctl("crds", "list", "-o", "json", "--concurrency", "4")
		Expect(err).NotTo(HaveOccurred())

		var list struct {
			Items []discovery.InstalledResource `json:"items"`
		}
		Expect(json.Unmarshal([]byte(out), &list)).To(Succeed())
		Expect(list.Items).To(ConsistOf(
			discovery.InstalledResource{Group: "kafka.example.tech", Version: "v1alpha1", Kind: "KafkaCluster", Resource: "kafkaclusters", Namespaced: true},
			discovery.InstalledResource{Group: "secrets.example.tech", Version: "v1alpha1", Kind: "SecretClass", Resource: "secretclasses", Namespaced: false},
		))
	})

	It("should report kinds installed while watching", func() {
		out := &utils.SyncBuffer{}
		cmd := exec.CommandContext(context.Background(), binary,
			"--context", "kind-"+clusterName, "crds", "watch", "--interval", "1s")
		Expect(utils.StartCommand(cmd, out)).To(Succeed())
		defer func() {
			_ = cmd.Process.Signal(syscall.SIGTERM)
			_ = cmd.Wait()
		}()

		Eventually(out.String, 30*time.Second, time.Second).Should(
			ContainSubstring("+ KafkaCluster.v1alpha1.kafka.example.tech"))

		By("installing another platform CRD")
		Expect(utils.ApplyManifest(trinoCRD)).To(Succeed())
		Expect(utils.WaitForCRDEstablished("trinocatalogs.trino.example.tech", time.Minute)).To(Succeed())

		Eventually(out.String, 30*time.Second, time.Second).Should(
			ContainSubstring("+ TrinoCatalog.v1alpha1.trino.example.tech"))
		Expect(out.String()).NotTo(ContainSubstring("Widget"))
	})

	It("should fail without a usable kubeconfig", func() {
		_, err := utils.RunStdout(exec.CommandContext(context.Background(), binary,
			"--kubeconfig", "/dev/null", "crds", "list"))
		Expect(err).To(HaveOccurred())
		Expect(strings.Contains(err.Error(), "exit status 1")).To(BeTrue())
	})
})
